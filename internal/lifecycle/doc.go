// Package lifecycle drives domains through start, shutdown, destroy,
// suspend, resume and delete against one libvirt driver.
//
// Manager keeps a process-local record of every domain it started together
// with the host resources held for it (device side effects and prepared
// roots). The record is released when the domain is stopped through the
// manager or when libvirt reports that it stopped on its own; both paths go
// through the same mutex.
//
// Start is gated by Validate: unavailable devices and exclusive devices
// already attached to another active domain refuse the start before any side
// effect runs.
package lifecycle
