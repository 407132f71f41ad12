package domain

import (
	"time"

	"github.com/jbweber/crucible/internal/cpu"
	"github.com/jbweber/crucible/internal/device"
)

// Time selects the guest clock offset.
type Time string

const (
	TimeLocal Time = "LOCAL"
	TimeUTC   Time = "UTC"
)

// Configuration is shared by virtual machines and containers.
type Configuration struct {
	UUID        string
	Name        string
	Description string

	// Zero means unset for VCPUs, Cores, Threads and Memory.
	VCPUs   uint
	Cores   uint
	Threads uint
	CPUSet  string

	// Memory is in MiB.
	Memory uint

	Time            Time
	ShutdownTimeout time.Duration

	Devices []device.Device
}

// CPUSetList expands CPUSet into individual CPUs.
func (c *Configuration) CPUSetList() ([]int, error) {
	return cpu.ParseSet(c.CPUSet)
}

// Bootloader selects the VM firmware.
type Bootloader string

const (
	BootloaderUEFI    Bootloader = "UEFI"
	BootloaderUEFICSM Bootloader = "UEFI_CSM"
)

// CPUMode is how the guest CPU relates to the host CPU.
type CPUMode string

const (
	CPUModeCustom          CPUMode = "CUSTOM"
	CPUModeHostModel       CPUMode = "HOST-MODEL"
	CPUModeHostPassthrough CPUMode = "HOST-PASSTHROUGH"
)

// VMConfiguration describes a KVM guest.
type VMConfiguration struct {
	Configuration

	ArchType    string
	MachineType string

	Bootloader     Bootloader
	BootloaderOVMF string
	// NVRAMPath is left to libvirt when empty.
	NVRAMPath string

	CPUMode                    CPUMode
	CPUModel                   string
	EnableCPUTopologyExtension bool
	Nodeset                    string
	PinVCPUs                   bool

	// MinMemory in MiB enables ballooning down to it.
	MinMemory uint

	EnsureDisplayDevice   bool
	HypervEnlightenments  bool
	TrustedPlatformModule bool
	HideFromMSR           bool
	EnableSecureBoot      bool

	// CommandLineArgs are extra QEMU arguments, shell quoted.
	CommandLineArgs string
}

// IDMapRange maps container ids starting at 0 onto Count host ids starting
// at Target.
type IDMapRange struct {
	Target uint
	Count  uint
}

// IDMap is a container's user and group id mapping.
type IDMap struct {
	UID IDMapRange
	GID IDMapRange
}

// CapabilitiesPolicy is the default for Linux capabilities not listed
// explicitly.
type CapabilitiesPolicy string

const (
	CapabilitiesDefault CapabilitiesPolicy = "default"
	CapabilitiesAllow   CapabilitiesPolicy = "allow"
	CapabilitiesDeny    CapabilitiesPolicy = "deny"
)

// ContainerConfiguration describes an LXC guest.
type ContainerConfiguration struct {
	Configuration

	Root string
	// Init is the shell quoted init command line.
	Init      string
	InitDir   string
	InitEnv   map[string]string
	InitUser  string
	InitGroup string

	// IDMap, when set, makes the root an id-mapped bind mount.
	IDMap *IDMap

	CapabilitiesPolicy CapabilitiesPolicy
	// CapabilitiesState turns individual capabilities on or off, keyed by
	// their lowercase name without the CAP_ prefix.
	CapabilitiesState map[string]bool
}
