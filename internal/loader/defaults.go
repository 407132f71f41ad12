package loader

import (
	"strings"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

const (
	defaultOVMF           = "OVMF_CODE.fd"
	defaultDisplayBind    = "0.0.0.0"
	defaultResolution     = "1024x768"
	defaultUSBController  = "nec-xhci"
	defaultCapabilityMode = domain.CapabilitiesDefault
)

func applyVMDefaults(vm *v1alpha1.VirtualMachine) {
	vm.SetDefaultAPIVersion()
	normalizeMeta(&vm.ObjectMeta)
	applyDomainDefaults(&vm.Spec.DomainSpec)

	s := &vm.Spec
	if s.Bootloader == "" {
		s.Bootloader = string(domain.BootloaderUEFI)
	}
	if s.BootloaderOVMF == "" {
		s.BootloaderOVMF = defaultOVMF
	}
	if s.CPUMode == "" {
		s.CPUMode = string(domain.CPUModeCustom)
	}
}

func applyContainerDefaults(c *v1alpha1.Container) {
	c.SetDefaultAPIVersion()
	normalizeMeta(&c.ObjectMeta)
	applyDomainDefaults(&c.Spec.DomainSpec)

	if c.Spec.Capabilities.Policy == "" {
		c.Spec.Capabilities.Policy = string(defaultCapabilityMode)
	}
}

func normalizeMeta(m *v1alpha1.ObjectMeta) {
	m.UID = strings.ToLower(m.UID)
}

func applyDomainDefaults(s *v1alpha1.DomainSpec) {
	if s.Time == "" {
		s.Time = string(domain.TimeLocal)
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = v1alpha1.DefaultShutdownTimeout
	}

	for i := range s.Devices {
		applyDeviceDefaults(&s.Devices[i])
	}
}

func applyDeviceDefaults(d *v1alpha1.DeviceSpec) {
	switch device.Kind(d.Kind) {
	case device.KindDisk:
		if d.Type == "" {
			d.Type = string(device.DiskTypeFile)
			if strings.HasPrefix(d.Path, "/dev/zvol/") {
				d.Type = string(device.DiskTypeBlock)
			}
		}
		if d.Bus == "" {
			d.Bus = string(device.DiskBusAHCI)
		}
	case device.KindNIC:
		if d.Type == "" {
			d.Type = string(device.NICTypeBridge)
		}
		if d.Model == "" {
			d.Model = string(device.NICModelVirtio)
		}
	case device.KindUSB:
		if d.ControllerType == "" {
			d.ControllerType = defaultUSBController
		}
	case device.KindDisplay:
		if d.Type == "" {
			d.Type = string(device.DisplayTypeSPICE)
		}
		if d.Bind == "" {
			d.Bind = defaultDisplayBind
		}
		if d.Resolution == "" {
			d.Resolution = defaultResolution
		}
		if d.Web == nil {
			web := d.Type == string(device.DisplayTypeSPICE)
			d.Web = &web
		}
	}
}
