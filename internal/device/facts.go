package device

import (
	"os"

	"github.com/jbweber/crucible/internal/hostdev"
)

// PCIFacts looks up PCI functions on the host.
//
// In production, this is satisfied by *hostdev.Host.
type PCIFacts interface {
	PCIDevice(address string) (hostdev.PCIDevice, error)
}

// USBFacts looks up USB devices on the host.
type USBFacts interface {
	USBByName(name string) (hostdev.USBDevice, error)
	USBByIDs(vendorID, productID string) (hostdev.USBDevice, error)
}

// GPUFacts looks up GPUs and their driver nodes on the host.
type GPUFacts interface {
	PCIFacts
	GPUs() ([]hostdev.GPU, error)
	RenderNode(address string) (string, bool)
	NVIDIADeviceNode(address string) (string, bool)
	DeviceNodeExists(path string) bool
}

// LinkFacts looks up and manages network links.
//
// In production, this is satisfied by hostdev.Links.
type LinkFacts interface {
	Exists(name string) bool
	SetUp(name string) error
	DefaultInterface() (string, error)
}

var defaultHost = hostdev.New()

var hostLinks LinkFacts = hostdev.Links{}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
