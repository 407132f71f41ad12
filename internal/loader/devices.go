package loader

import (
	"fmt"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/device"
)

// buildDevices builds every device and runs its static validation. Field
// names in the returned device.ValidationErrors are prefixed with the
// device's position.
func buildDevices(specs []v1alpha1.DeviceSpec, opts Options) ([]device.Device, error) {
	var errs device.ValidationErrors
	devices := make([]device.Device, 0, len(specs))
	for i := range specs {
		prefix := fmt.Sprintf("spec.devices[%d].", i)
		d, err := buildDevice(&specs[i], opts)
		if err != nil {
			errs.Add(prefix+"kind", err.Error())
			continue
		}
		for _, e := range d.Validate() {
			errs.Add(prefix+e.Field, e.Message)
		}
		devices = append(devices, d)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return devices, nil
}

func buildDevice(s *v1alpha1.DeviceSpec, opts Options) (device.Device, error) {
	base := device.Base{Delegate: opts.Delegate}

	switch device.Kind(s.Kind) {
	case device.KindDisk:
		return &device.Disk{
			Base:               base,
			Type:               device.DiskType(s.Type),
			Bus:                device.DiskBus(s.Bus),
			Path:               s.Path,
			IOType:             device.IOType(s.IOType),
			Serial:             s.Serial,
			LogicalSectorSize:  s.LogicalSectorSize,
			PhysicalSectorSize: s.PhysicalSectorSize,
		}, nil
	case device.KindCDROM:
		return &device.CDROM{Base: base, Path: s.Path}, nil
	case device.KindNIC:
		return &device.NIC{
			Base:                base,
			Type:                device.NICType(s.Type),
			Source:              s.Source,
			Model:               device.NICModel(s.Model),
			MAC:                 s.MAC,
			TrustGuestRxFilters: s.TrustGuestRxFilters,
			Links:               opts.Links,
		}, nil
	case device.KindPCI:
		d := device.NewPCI(s.Name)
		d.Base = base
		d.Facts = opts.PCIFacts
		return d, nil
	case device.KindUSB:
		return &device.USB{
			Base:           base,
			Device:         s.Device,
			VendorID:       s.VendorID,
			ProductID:      s.ProductID,
			ControllerType: s.ControllerType,
			Facts:          opts.USBFacts,
		}, nil
	case device.KindGPU:
		return &device.GPU{
			Base:       base,
			Type:       device.GPUType(s.Type),
			PCIAddress: s.PCIAddress,
			Facts:      opts.GPUFacts,
		}, nil
	case device.KindDisplay:
		return &device.Display{
			Base:       base,
			Type:       device.DisplayType(s.Type),
			Bind:       s.Bind,
			Port:       s.Port,
			WebPort:    s.WebPort,
			Password:   s.Password,
			Web:        s.Web != nil && *s.Web,
			Resolution: s.Resolution,
		}, nil
	case device.KindFilesystem:
		return &device.Filesystem{Base: base, Source: s.Source, Target: s.Target}, nil
	}
	return nil, fmt.Errorf("unsupported device kind %q", s.Kind)
}
