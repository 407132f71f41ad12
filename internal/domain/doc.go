// Package domain describes virtual machines and containers and renders their
// libvirt definitions.
//
// A Domain couples a configuration record with the device manager for its
// devices. Prepare sets up what the host must provide before libvirt starts
// the domain, such as an id-mapped container root, and Description turns the
// configuration into a libvirtxml.Domain.
package domain
