package device

import (
	"fmt"
	"strconv"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/hostdev"
)

// USB passes a host USB device through to the guest. The device is named
// either by its libvirt name (usb_1_2) or by vendor and product ids, never
// both.
type USB struct {
	Base

	Device         string
	VendorID       string
	ProductID      string
	ControllerType string

	// Facts defaults to sysfs on the running host.
	Facts USBFacts
}

func (d *USB) facts() USBFacts {
	if d.Facts == nil {
		return defaultHost
	}
	return d.Facts
}

func (d *USB) Kind() Kind      { return KindUSB }
func (d *USB) Exclusive() bool { return true }

func (d *USB) Identity() string {
	if d.Device != "" {
		return d.Device
	}
	return hostdev.NormalizeUSBID(d.VendorID) + ":" + hostdev.NormalizeUSBID(d.ProductID)
}

func (d *USB) hasIDs() bool {
	return d.VendorID != "" || d.ProductID != ""
}

// resolve finds the host device this configuration refers to.
func (d *USB) resolve() (hostdev.USBDevice, error) {
	if d.Device != "" {
		return d.facts().USBByName(d.Device)
	}
	return d.facts().USBByIDs(d.VendorID, d.ProductID)
}

func (d *USB) IsAvailable() bool {
	if !d.allowed(d) {
		return false
	}
	_, err := d.resolve()
	return err == nil
}

func (d *USB) Validate() ValidationErrors {
	var errs ValidationErrors
	switch {
	case d.Device != "" && d.hasIDs():
		errs.Add("device", "device must be specified or USB details but not both")
	case d.Device == "" && !d.hasIDs():
		errs.Add("usb", "Either device or USB details must be specified")
	case d.Device != "":
		if _, _, ok := hostdev.ParseUSBName(d.Device); !ok {
			errs.Add("device", fmt.Sprintf("Not a valid choice. %s is not a USB device name", d.Device))
		}
	default:
		if d.VendorID == "" {
			errs.Add("usb.vendor_id", "This field is required.")
		}
		if d.ProductID == "" {
			errs.Add("usb.product_id", "This field is required.")
		}
	}
	return errs
}

func (d *USB) ValidateStart(sc StartContext) ValidationErrors {
	var bus, dev, vendor, product string
	if d.Device != "" {
		bus, dev, _ = hostdev.ParseUSBName(d.Device)
	} else {
		vendor, product = hostdev.NormalizeUSBID(d.VendorID), hostdev.NormalizeUSBID(d.ProductID)
	}
	if host, err := d.resolve(); err == nil {
		bus, dev = host.Bus, host.Device
		vendor, product = host.VendorID, host.ProductID
	}

	return scanConflicts(sc, d, func(h describedHostdev) bool {
		if h.Type != "usb" {
			return false
		}
		if vendor != "" && product != "" &&
			sameNumber(h.Source.Vendor.ID, vendor, 16) && sameNumber(h.Source.Product.ID, product, 16) {
			return true
		}
		a := h.Source.Address
		return a != nil && bus != "" && sameNumber(a.Bus, bus, 10) && sameNumber(a.Device, dev, 10)
	})
}

func decimalField(s string) *uint {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil
	}
	v := uint(n)
	return &v
}

func (d *USB) Render(c *Counters) Fragment {
	source := &libvirtxml.DomainHostdevSubsysUSBSource{}
	var bus, dev, vendor, product string
	if d.Device != "" {
		bus, dev, _ = hostdev.ParseUSBName(d.Device)
	} else {
		vendor, product = hostdev.NormalizeUSBID(d.VendorID), hostdev.NormalizeUSBID(d.ProductID)
	}
	if host, err := d.resolve(); err == nil {
		if d.Device == "" {
			bus, dev = host.Bus, host.Device
		}
		vendor, product = host.VendorID, host.ProductID
	}
	if vendor != "" && product != "" {
		source.Vendor = &libvirtxml.DomainHostDevProductVendorID{ID: vendor}
		source.Product = &libvirtxml.DomainHostDevProductVendorID{ID: product}
	}
	if bus != "" {
		source.Address = &libvirtxml.DomainAddressUSB{Bus: decimalField(bus), Device: decimalField(dev)}
	}

	controller := d.ControllerType
	if controller == "" {
		controller = "nec-xhci"
	}
	guestBus := c.USBControllerNo(controller)

	var f Fragment
	f.Hostdevs = append(f.Hostdevs, libvirtxml.DomainHostdev{
		Managed:   "yes",
		SubsysUSB: &libvirtxml.DomainHostdevSubsysUSB{Source: source},
		Address:   &libvirtxml.DomainAddress{USB: &libvirtxml.DomainAddressUSB{Bus: &guestBus}},
	})
	return f
}
