package v1alpha1

// VirtualMachine is a KVM guest.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:shortName=vm;vms
type VirtualMachine struct {
	TypeMeta `json:",inline" yaml:",inline"`

	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec VirtualMachineSpec `json:"spec" yaml:"spec"`
}

// VirtualMachineSpec defines a KVM guest.
//
// +k8s:deepcopy-gen=true
type VirtualMachineSpec struct {
	DomainSpec `json:",inline" yaml:",inline"`

	// Arch is the guest architecture, e.g. x86_64.
	// +optional
	Arch string `json:"arch,omitempty" yaml:"arch,omitempty"`

	// Machine is the QEMU machine type, e.g. pc-q35-8.2.
	// +optional
	Machine string `json:"machine,omitempty" yaml:"machine,omitempty"`

	// Bootloader is UEFI (default) or UEFI_CSM.
	// +optional
	// +kubebuilder:validation:Enum=UEFI;UEFI_CSM
	Bootloader string `json:"bootloader,omitempty" yaml:"bootloader,omitempty" validate:"omitempty,oneof=UEFI UEFI_CSM"`

	// BootloaderOVMF is the firmware code file in the OVMF directory.
	// Defaults to OVMF_CODE.fd.
	// +optional
	BootloaderOVMF string `json:"bootloaderOVMF,omitempty" yaml:"bootloaderOVMF,omitempty"`

	// NVRAMPath is where libvirt keeps the guest's UEFI variables.
	// +optional
	NVRAMPath string `json:"nvramPath,omitempty" yaml:"nvramPath,omitempty"`

	// CPUMode is CUSTOM (default), HOST-MODEL or HOST-PASSTHROUGH.
	// +optional
	// +kubebuilder:validation:Enum=CUSTOM;HOST-MODEL;HOST-PASSTHROUGH
	CPUMode string `json:"cpuMode,omitempty" yaml:"cpuMode,omitempty" validate:"omitempty,oneof=CUSTOM HOST-MODEL HOST-PASSTHROUGH"`

	// CPUModel names a libvirt CPU model for CUSTOM mode.
	// +optional
	CPUModel string `json:"cpuModel,omitempty" yaml:"cpuModel,omitempty"`

	// +optional
	EnableCPUTopologyExtension bool `json:"enableCPUTopologyExtension,omitempty" yaml:"enableCPUTopologyExtension,omitempty"`

	// Nodeset restricts guest memory to host NUMA nodes.
	// +optional
	Nodeset string `json:"nodeset,omitempty" yaml:"nodeset,omitempty"`

	// PinVCPUs pins each vCPU to one CPU of CPUSet.
	// +optional
	PinVCPUs bool `json:"pinVCPUs,omitempty" yaml:"pinVCPUs,omitempty"`

	// MinMemory in MiB enables ballooning down to this size.
	// +optional
	MinMemory uint `json:"minMemory,omitempty" yaml:"minMemory,omitempty"`

	// +optional
	EnsureDisplayDevice bool `json:"ensureDisplayDevice,omitempty" yaml:"ensureDisplayDevice,omitempty"`
	// +optional
	HypervEnlightenments bool `json:"hypervEnlightenments,omitempty" yaml:"hypervEnlightenments,omitempty"`
	// +optional
	TrustedPlatformModule bool `json:"trustedPlatformModule,omitempty" yaml:"trustedPlatformModule,omitempty"`
	// +optional
	HideFromMSR bool `json:"hideFromMSR,omitempty" yaml:"hideFromMSR,omitempty"`
	// +optional
	EnableSecureBoot bool `json:"enableSecureBoot,omitempty" yaml:"enableSecureBoot,omitempty"`

	// CommandLineArgs are passed to QEMU after shell-style splitting.
	// +optional
	CommandLineArgs string `json:"commandLineArgs,omitempty" yaml:"commandLineArgs,omitempty"`
}

// DeepCopy creates a deep copy of VirtualMachine.
func (in *VirtualMachine) DeepCopy() *VirtualMachine {
	if in == nil {
		return nil
	}
	out := new(VirtualMachine)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of VirtualMachineSpec.
func (in *VirtualMachineSpec) DeepCopy() *VirtualMachineSpec {
	if in == nil {
		return nil
	}
	out := new(VirtualMachineSpec)
	*out = *in
	out.DomainSpec = *in.DomainSpec.DeepCopy()
	return out
}
