package device

import (
	"fmt"
	"strings"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/hostdev"
)

// GPUType is the GPU vendor.
type GPUType string

const (
	GPUTypeAMD    GPUType = "AMD"
	GPUTypeIntel  GPUType = "INTEL"
	GPUTypeNVIDIA GPUType = "NVIDIA"
)

const amdDriverNode = "/dev/kfd"

var nvidiaDriverNodes = []string{"/dev/nvidia-uvm", "/dev/nvidiactl"}

// GPU shares a host GPU with a container through its device nodes.
type GPU struct {
	Base

	Type       GPUType
	PCIAddress string

	// Facts defaults to sysfs and procfs on the running host.
	Facts GPUFacts
}

func (d *GPU) facts() GPUFacts {
	if d.Facts == nil {
		return defaultHost
	}
	return d.Facts
}

func (d *GPU) Kind() Kind { return KindGPU }

func (d *GPU) Identity() string {
	return fmt.Sprintf("%s '%s'", d.Type, d.PCIAddress)
}

func (d *GPU) address() string {
	return hostdev.NormalizePCIAddress(d.PCIAddress)
}

// node returns the device node passed into the guest.
func (d *GPU) node() (string, bool) {
	if d.Type == GPUTypeNVIDIA {
		return d.facts().NVIDIADeviceNode(d.address())
	}
	return d.facts().RenderNode(d.address())
}

func (d *GPU) driversPresent() bool {
	f := d.facts()
	switch d.Type {
	case GPUTypeAMD:
		return f.DeviceNodeExists(amdDriverNode)
	case GPUTypeNVIDIA:
		for _, n := range nvidiaDriverNodes {
			if !f.DeviceNodeExists(n) {
				return false
			}
		}
	}
	return true
}

func (d *GPU) IsAvailable() bool {
	if !d.allowed(d) {
		return false
	}
	dev, err := d.facts().PCIDevice(d.address())
	if err != nil {
		return false
	}
	for _, drv := range dev.Drivers() {
		if drv == "vfio-pci" {
			return false
		}
	}
	_, ok := d.node()
	return ok && d.driversPresent()
}

func (d *GPU) Validate() ValidationErrors {
	var errs ValidationErrors
	f := d.facts()

	dev, err := f.PCIDevice(d.address())
	switch {
	case err != nil:
		errs.Add("pci_address", fmt.Sprintf("Not a valid choice. The GPU device %s not found", d.PCIAddress))
	case dev.Error != "":
		errs.Add("pci_address", fmt.Sprintf("Not a valid choice. The GPU device is not available: %s", dev.Error))
	}

	if !d.vendorMatches() {
		errs.Add("gpu_type", fmt.Sprintf("Unable to locate '%s' GPU device at '%s' PCI address", d.Type, d.PCIAddress))
	}

	switch d.Type {
	case GPUTypeAMD, GPUTypeIntel:
		if len(errs) > 0 {
			return errs
		}
		if _, ok := d.node(); !ok {
			errs.Add("pci_address", "Unable to locate compute/render node for GPU")
			return errs
		}
		if d.Type == GPUTypeAMD && !d.driversPresent() {
			errs.Add("gpu_type", fmt.Sprintf("'%s' must exist for AMD GPUs", amdDriverNode))
		}
	case GPUTypeNVIDIA:
		if !d.driversPresent() {
			errs.Add("gpu_type", fmt.Sprintf("NVIDIA drivers (%s) must exist for NVIDIA GPUs",
				strings.Join(nvidiaDriverNodes, ", ")))
		}
		if _, ok := d.node(); !ok {
			errs.Add("pci_address", "Unable to locate NVIDIA device node")
		}
	default:
		errs.Add("gpu_type", fmt.Sprintf("Not a valid choice. %q is not a supported GPU type", d.Type))
	}
	return errs
}

func (d *GPU) vendorMatches() bool {
	gpus, err := d.facts().GPUs()
	if err != nil {
		return false
	}
	for _, g := range gpus {
		if g.Vendor == string(d.Type) && g.Address == d.address() {
			return true
		}
	}
	return false
}

func charHostdev(path string) libvirtxml.DomainHostdev {
	return libvirtxml.DomainHostdev{
		CapsMisc: &libvirtxml.DomainHostdevCapsMisc{
			Source: &libvirtxml.DomainHostdevCapsMiscSource{Char: path},
		},
	}
}

func (d *GPU) Render(*Counters) Fragment {
	var f Fragment
	if node, ok := d.node(); ok {
		f.Hostdevs = append(f.Hostdevs, charHostdev(node))
	}
	return f
}

// UsesDriverNodes reports whether the vendor needs shared driver nodes in
// addition to the per-GPU node.
func (d *GPU) UsesDriverNodes() bool {
	return d.Type == GPUTypeAMD || d.Type == GPUTypeNVIDIA
}

// DriverFragment renders the vendor's shared driver nodes. A domain needs
// them once no matter how many GPUs of that vendor it has.
func (d *GPU) DriverFragment() Fragment {
	var f Fragment
	switch d.Type {
	case GPUTypeAMD:
		f.Hostdevs = append(f.Hostdevs, charHostdev(amdDriverNode))
	case GPUTypeNVIDIA:
		for _, n := range nvidiaDriverNodes {
			f.Hostdevs = append(f.Hostdevs, charHostdev(n))
		}
	}
	return f
}
