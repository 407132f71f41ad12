// Package hostdev reads facts about host devices from sysfs, procfs and
// netlink: PCI functions and their IOMMU groups, USB devices, GPUs and their
// driver nodes, and network links.
//
// The roots of /sys, /proc and /dev are configurable so the readers can be
// pointed at a fake tree in tests.
package hostdev
