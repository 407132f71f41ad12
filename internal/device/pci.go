package device

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/hostdev"
)

var pciDeviceRE = regexp.MustCompile(`^pci_[0-9a-fA-F]{4}_[0-9a-fA-F]{2}_[0-9a-fA-F]{2}_[0-7]$`)

// PCI passes a host PCI function through to the guest. Domain, Bus, Slot and
// Function are hex strings ("0000", "01", "00", "0").
type PCI struct {
	Base

	Name     string
	Domain   string
	Bus      string
	Slot     string
	Function string

	// Facts defaults to sysfs on the running host.
	Facts PCIFacts
}

// NewPCI builds a PCI device from a libvirt node device name such as
// pci_0000_01_00_0.
func NewPCI(name string) *PCI {
	d := &PCI{Name: name}
	if addr, ok := hostdev.PCIAddressFromName(name); ok {
		// 0000:01:00.0
		d.Domain, d.Bus, d.Slot, d.Function = addr[0:4], addr[5:7], addr[8:10], addr[11:]
	}
	return d
}

func (d *PCI) facts() PCIFacts {
	if d.Facts == nil {
		return defaultHost
	}
	return d.Facts
}

func (d *PCI) Kind() Kind      { return KindPCI }
func (d *PCI) Exclusive() bool { return true }

// Identity is the libvirt node device name.
func (d *PCI) Identity() string {
	if d.Name != "" {
		return d.Name
	}
	return hostdev.PCINameFromAddress(d.address())
}

func (d *PCI) address() string {
	return fmt.Sprintf("%s:%s:%s.%s", d.Domain, d.Bus, d.Slot, d.Function)
}

func (d *PCI) IsAvailable() bool {
	if !d.allowed(d) {
		return false
	}
	dev, err := d.facts().PCIDevice(d.address())
	return err == nil && !dev.Critical
}

func (d *PCI) Validate() ValidationErrors {
	var errs ValidationErrors
	if d.Name != "" && !pciDeviceRE.MatchString(d.Name) {
		errs.Add("pptdev", fmt.Sprintf("Not a valid choice. %s is not a PCI device name", d.Name))
	}
	for _, f := range []struct {
		field string
		value string
		max   uint64
	}{
		{"domain", d.Domain, 0xffff},
		{"bus", d.Bus, 0xff},
		{"slot", d.Slot, 0x1f},
		{"function", d.Function, 0x7},
	} {
		n, err := strconv.ParseUint(f.value, 16, 64)
		if err != nil || n > f.max {
			errs.Add(f.field, fmt.Sprintf("%q is not a valid PCI %s", f.value, f.field))
		}
	}
	return errs
}

func (d *PCI) ValidateStart(sc StartContext) ValidationErrors {
	return scanConflicts(sc, d, func(h describedHostdev) bool {
		a := h.Source.Address
		if h.Type != "pci" || a == nil {
			return false
		}
		return sameNumber(a.Domain, d.Domain, 16) &&
			sameNumber(a.Bus, d.Bus, 16) &&
			sameNumber(a.Slot, d.Slot, 16) &&
			sameNumber(a.Function, d.Function, 16)
	})
}

func hexField(s string) *uint {
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil
	}
	v := uint(n)
	return &v
}

func (d *PCI) Render(*Counters) Fragment {
	var f Fragment
	f.Hostdevs = append(f.Hostdevs, libvirtxml.DomainHostdev{
		Managed: "yes",
		SubsysPCI: &libvirtxml.DomainHostdevSubsysPCI{
			Source: &libvirtxml.DomainHostdevSubsysPCISource{
				Address: &libvirtxml.DomainAddressPCI{
					Domain:   hexField(d.Domain),
					Bus:      hexField(d.Bus),
					Slot:     hexField(d.Slot),
					Function: hexField(d.Function),
				},
			},
		},
	})
	return f
}

// Run detaches the function from its host driver and binds it to vfio-pci.
// The release reattaches it only when this run did the detaching.
func (d *PCI) Run(rc RunContext) (Release, error) {
	if rc.NodeDevices == nil {
		return noRelease, nil
	}
	log := rc.Log.WithValues("device", d.Identity())

	dev, err := d.facts().PCIDevice(d.address())
	if err == nil && dev.Driver == "vfio-pci" {
		log.V(1).Info("PCI device already bound to vfio-pci")
		return noRelease, nil
	}

	name := d.Identity()
	if err := rc.NodeDevices.NodeDeviceDetachFlags(name, libvirt.OptString{"vfio"}, 0); err != nil {
		if isAlreadyDetached(err) {
			log.V(1).Info("PCI device already detached")
			return noRelease, nil
		}
		return nil, &OperationalError{Op: "detach " + name, Err: err}
	}
	log.V(1).Info("Detached PCI device")

	return func() error {
		if err := rc.NodeDevices.NodeDeviceReAttach(name); err != nil {
			return &OperationalError{Op: "reattach " + name, Err: err}
		}
		log.V(1).Info("Reattached PCI device")
		return nil
	}, nil
}

func isAlreadyDetached(err error) bool {
	var lerr libvirt.Error
	if errors.As(err, &lerr) {
		return lerr.Code == uint32(libvirt.ErrOperationInvalid)
	}
	return false
}
