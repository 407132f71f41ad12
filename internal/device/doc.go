// Package device models the resources attached to a domain.
//
// Every attached resource is one variant of a closed set (Disk, CDROM, NIC,
// PCI, USB, GPU, Display, Filesystem) implementing Device. A device renders
// itself into a libvirtxml device list fragment, validates its own
// configuration, and optionally performs a host side effect while its domain
// is running.
//
// Manager starts the side effects of a domain's devices as one transaction:
// devices are acquired in configuration order, and a failure releases
// everything acquired so far in reverse order before the error is returned.
package device
