package device

import (
	"errors"
	"strings"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/hostdev"
)

// NICType selects how the guest interface attaches to the host.
type NICType string

const (
	NICTypeBridge NICType = "BRIDGE"
	NICTypeDirect NICType = "DIRECT"
)

// NICModel is the emulated network adapter.
type NICModel string

const (
	NICModelE1000  NICModel = "E1000"
	NICModelVirtio NICModel = "VIRTIO"
)

// NIC attaches the guest to a host bridge or, with macvtap, directly to a
// host interface.
type NIC struct {
	Base

	Type                NICType
	Source              string
	Model               NICModel
	MAC                 string
	TrustGuestRxFilters bool

	// Links defaults to netlink on the running host.
	Links LinkFacts
}

func (d *NIC) links() LinkFacts {
	if d.Links == nil {
		return hostLinks
	}
	return d.Links
}

func (d *NIC) Kind() Kind { return KindNIC }

// Identity is the configured source, or the interface carrying the default
// route when no source is configured.
func (d *NIC) Identity() string {
	if d.Source != "" {
		return d.Source
	}
	name, err := d.links().DefaultInterface()
	if err != nil {
		return ""
	}
	return name
}

func (d *NIC) IsAvailable() bool {
	return d.allowed(d) && d.links().Exists(d.Identity())
}

func (d *NIC) Validate() ValidationErrors {
	var errs ValidationErrors
	if d.TrustGuestRxFilters && strings.HasPrefix(d.Source, "br") {
		errs.Add("trust_guest_rx_filters", `This can only be set when "nic_attach" is not a bridge device`)
	}
	if d.TrustGuestRxFilters && d.Model != NICModelVirtio {
		errs.Add("trust_guest_rx_filters", `This can only be set when "type" of NIC device is "VIRTIO"`)
	}
	if strings.HasPrefix(strings.ToLower(d.MAC), "ff") {
		errs.Add("mac", "MAC address must not start with `ff`")
	}
	return errs
}

func (d *NIC) Render(*Counters) Fragment {
	iface := libvirtxml.DomainInterface{}
	if d.Model != "" {
		iface.Model = &libvirtxml.DomainInterfaceModel{Type: strings.ToLower(string(d.Model))}
	}
	if d.MAC != "" {
		iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: d.MAC}
	}

	switch d.Type {
	case NICTypeDirect:
		iface.TrustGuestRXFilters = "no"
		if d.TrustGuestRxFilters {
			iface.TrustGuestRXFilters = "yes"
		}
		iface.Source = &libvirtxml.DomainInterfaceSource{
			Direct: &libvirtxml.DomainInterfaceSourceDirect{Dev: d.Identity(), Mode: "bridge"},
		}
	default:
		iface.Source = &libvirtxml.DomainInterfaceSource{
			Bridge: &libvirtxml.DomainInterfaceSourceBridge{Bridge: d.Identity()},
		}
	}

	var f Fragment
	f.Interfaces = append(f.Interfaces, iface)
	return f
}

// Run brings the attached link up.
func (d *NIC) Run(rc RunContext) (Release, error) {
	name := d.Identity()
	if err := d.links().SetUp(name); err != nil {
		if !errors.Is(err, hostdev.ErrNotFound) {
			return nil, &OperationalError{Op: "bring up " + name, Err: err}
		}
		// a missing link is reported by start validation
		rc.Log.V(1).Info("Link not found", "link", name)
	}
	return noRelease, nil
}
