package device

import (
	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"libvirt.org/go/libvirtxml"
)

// Kind identifies a device variant.
type Kind string

const (
	KindDisk       Kind = "DISK"
	KindCDROM      Kind = "CDROM"
	KindNIC        Kind = "NIC"
	KindPCI        Kind = "PCI"
	KindUSB        Kind = "USB"
	KindGPU        Kind = "GPU"
	KindDisplay    Kind = "DISPLAY"
	KindFilesystem Kind = "FILESYSTEM"
)

// Kinds lists every device variant.
var Kinds = []Kind{KindDisk, KindCDROM, KindNIC, KindPCI, KindUSB, KindGPU, KindDisplay, KindFilesystem}

// Device is implemented by every device variant.
type Device interface {
	Kind() Kind

	// Identity names the physical or logical resource behind the device,
	// unique within its kind.
	Identity() string

	// Exclusive reports whether at most one active domain may use the
	// resource at a time.
	Exclusive() bool

	// IsAvailable reports whether the delegate allows the device and the
	// resource is present on the host.
	IsAvailable() bool

	// Validate checks the static configuration.
	Validate() ValidationErrors

	// ValidateStart checks the device against the currently active domains.
	ValidateStart(sc StartContext) ValidationErrors

	// Render appends the device's libvirt XML to a fragment, drawing slot and
	// boot numbers from c.
	Render(c *Counters) Fragment

	// Run performs the device's host side effect. The returned Release undoes
	// it and must be called exactly once.
	Run(rc RunContext) (Release, error)
}

// Release undoes a side effect started by Run.
type Release func() error

func noRelease() error { return nil }

// Fragment is the part of a domain's <devices> element a device contributes.
type Fragment struct {
	libvirtxml.DomainDeviceList
}

// Append adds every device in o to f.
func (f *Fragment) Append(o Fragment) {
	f.Disks = append(f.Disks, o.Disks...)
	f.Controllers = append(f.Controllers, o.Controllers...)
	f.Filesystems = append(f.Filesystems, o.Filesystems...)
	f.Interfaces = append(f.Interfaces, o.Interfaces...)
	f.Serials = append(f.Serials, o.Serials...)
	f.Consoles = append(f.Consoles, o.Consoles...)
	f.Channels = append(f.Channels, o.Channels...)
	f.Inputs = append(f.Inputs, o.Inputs...)
	f.TPMs = append(f.TPMs, o.TPMs...)
	f.Graphics = append(f.Graphics, o.Graphics...)
	f.Videos = append(f.Videos, o.Videos...)
	f.Hostdevs = append(f.Hostdevs, o.Hostdevs...)
}

// DomainLister lists active domains and their XML for the conflict scan.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
type DomainLister interface {
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
}

// NodeDeviceClient detaches and reattaches host PCI functions.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
type NodeDeviceClient interface {
	NodeDeviceDetachFlags(name string, driverName libvirt.OptString, flags uint32) error
	NodeDeviceReAttach(name string) error
}

// StartContext carries what ValidateStart needs to look at other domains.
type StartContext struct {
	Domains    DomainLister
	DomainUUID string
	Log        logr.Logger
}

// RunContext carries what Run needs to perform host side effects.
type RunContext struct {
	NodeDevices NodeDeviceClient
	DomainUUID  string
	Log         logr.Logger
}

// Base holds what all variants share. Embed it in every variant.
type Base struct {
	Delegate Delegate
}

func (b Base) allowed(d Device) bool {
	if b.Delegate == nil {
		return DefaultDelegate.IsAvailable(d)
	}
	return b.Delegate.IsAvailable(d)
}

// Exclusive is false unless a variant overrides it.
func (Base) Exclusive() bool { return false }

// ValidateStart has nothing to check for non-exclusive devices.
func (Base) ValidateStart(StartContext) ValidationErrors { return nil }

// Run is a no-op by default.
func (Base) Run(RunContext) (Release, error) { return noRelease, nil }
