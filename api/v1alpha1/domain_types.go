package v1alpha1

// DomainSpec holds the settings shared by virtual machines and containers.
//
// +k8s:deepcopy-gen=true
type DomainSpec struct {
	// Description is stored in the libvirt definition.
	// +optional
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// VCPUs is the number of sockets. Zero lets libvirt decide.
	// +optional
	VCPUs uint `json:"vcpus,omitempty" yaml:"vcpus,omitempty"`

	// Cores per socket.
	// +optional
	Cores uint `json:"cores,omitempty" yaml:"cores,omitempty"`

	// Threads per core.
	// +optional
	Threads uint `json:"threads,omitempty" yaml:"threads,omitempty"`

	// CPUSet restricts the domain to host CPUs, e.g. "0-3,8".
	// +optional
	CPUSet string `json:"cpuset,omitempty" yaml:"cpuset,omitempty"`

	// Memory in MiB. Unset means no limit for containers.
	// +optional
	Memory uint `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Time is the guest clock: LOCAL (default) or UTC.
	// +optional
	Time string `json:"time,omitempty" yaml:"time,omitempty" validate:"omitempty,oneof=LOCAL UTC"`

	// ShutdownTimeout is how many seconds shutdown waits for the guest.
	// Defaults to 90.
	// +optional
	ShutdownTimeout int `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty" validate:"gte=0"`

	// Devices in boot and slot order.
	// +optional
	Devices []DeviceSpec `json:"devices,omitempty" yaml:"devices,omitempty" validate:"dive"`
}

// DeviceSpec is one device. Kind selects which of the remaining fields
// apply.
//
// +k8s:deepcopy-gen=true
type DeviceSpec struct {
	// Kind is DISK, CDROM, NIC, PCI, USB, GPU, DISPLAY or FILESYSTEM.
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=DISK CDROM NIC PCI USB GPU DISPLAY FILESYSTEM"`

	// Path of a DISK image or block device, or of a CDROM ISO.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Type is FILE or BLOCK for DISK, BRIDGE or DIRECT for NIC, SPICE or
	// VNC for DISPLAY and AMD, INTEL or NVIDIA for GPU.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Bus is AHCI or VIRTIO for DISK.
	Bus string `json:"bus,omitempty" yaml:"bus,omitempty"`

	// IOType is NATIVE, THREADS or IO_URING for DISK.
	IOType string `json:"iotype,omitempty" yaml:"iotype,omitempty"`

	Serial             string `json:"serial,omitempty" yaml:"serial,omitempty"`
	LogicalSectorSize  uint   `json:"logicalSectorSize,omitempty" yaml:"logicalSectorSize,omitempty"`
	PhysicalSectorSize uint   `json:"physicalSectorSize,omitempty" yaml:"physicalSectorSize,omitempty"`

	// Source is the NIC link, or the FILESYSTEM host directory.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Target is the FILESYSTEM guest directory.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Model is E1000 or VIRTIO for NIC.
	Model               string `json:"model,omitempty" yaml:"model,omitempty"`
	MAC                 string `json:"mac,omitempty" yaml:"mac,omitempty"`
	TrustGuestRxFilters bool   `json:"trustGuestRxFilters,omitempty" yaml:"trustGuestRxFilters,omitempty"`

	// Name is the PCI node device name, e.g. pci_0000_01_00_0.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Device is the USB node device name, e.g. usb_1_4. Alternatively set
	// VendorID and ProductID.
	Device         string `json:"device,omitempty" yaml:"device,omitempty"`
	VendorID       string `json:"vendorID,omitempty" yaml:"vendorID,omitempty"`
	ProductID      string `json:"productID,omitempty" yaml:"productID,omitempty"`
	ControllerType string `json:"controllerType,omitempty" yaml:"controllerType,omitempty"`

	// PCIAddress of a GPU, e.g. 0000:19:00.0.
	PCIAddress string `json:"pciAddress,omitempty" yaml:"pciAddress,omitempty"`

	// DISPLAY settings.
	Bind       string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	WebPort    int    `json:"webPort,omitempty" yaml:"webPort,omitempty" validate:"gte=0,lte=65535"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Web        *bool  `json:"web,omitempty" yaml:"web,omitempty"`
	Resolution string `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

// DeepCopy creates a deep copy of DomainSpec.
func (in *DomainSpec) DeepCopy() *DomainSpec {
	if in == nil {
		return nil
	}
	out := new(DomainSpec)
	*out = *in
	if in.Devices != nil {
		out.Devices = make([]DeviceSpec, len(in.Devices))
		copy(out.Devices, in.Devices)
		for i := range out.Devices {
			if w := in.Devices[i].Web; w != nil {
				out.Devices[i].Web = new(bool)
				*out.Devices[i].Web = *w
			}
		}
	}
	return out
}
