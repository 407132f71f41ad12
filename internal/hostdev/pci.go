package hostdev

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var pciNameRE = regexp.MustCompile(`^pci_([0-9a-fA-F]{4})_([0-9a-fA-F]{2})_([0-9a-fA-F]{2})_([0-7])$`)

// sensitiveClasses are PCI classes whose presence makes an IOMMU group unsafe
// to pass through.
var sensitiveClasses = map[string]string{
	"0x0604": "PCI Bridge",
	"0x0601": "ISA Bridge",
	"0x0500": "RAM memory",
	"0x0c05": "SMBus",
}

// PCIDevice describes one PCI function.
type PCIDevice struct {
	Address    string
	Driver     string
	VendorID   string
	DeviceID   string
	Class      string
	IOMMUGroup string
	Critical   bool
	Error      string
}

// Drivers returns the bound drivers, empty when unbound.
func (d PCIDevice) Drivers() []string {
	if d.Driver == "" {
		return nil
	}
	return []string{d.Driver}
}

// Slot returns the address without its function, e.g. "0000:19:00".
func (d PCIDevice) Slot() string {
	if i := strings.LastIndex(d.Address, "."); i >= 0 {
		return d.Address[:i]
	}
	return d.Address
}

// Available reports whether the function is bound to vfio-pci (or to
// nothing) and its IOMMU group is safe to pass through.
func (d PCIDevice) Available() bool {
	for _, drv := range d.Drivers() {
		if drv != "vfio-pci" {
			return false
		}
	}
	return !d.Critical
}

// PCIAddressFromName converts a libvirt node device name (pci_0000_01_00_0)
// to a PCI address (0000:01:00.0).
func PCIAddressFromName(name string) (string, bool) {
	m := pciNameRE.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return fmt.Sprintf("%s:%s:%s.%s", m[1], m[2], m[3], m[4]), true
}

// PCINameFromAddress converts a PCI address to a libvirt node device name.
func PCINameFromAddress(address string) string {
	r := strings.NewReplacer(":", "_", ".", "_")
	return "pci_" + r.Replace(address)
}

// NormalizePCIAddress accepts either form and returns the address form.
func NormalizePCIAddress(s string) string {
	if addr, ok := PCIAddressFromName(s); ok {
		return addr
	}
	return strings.ToLower(s)
}

// PCIDevice returns the function at address (either form). ErrNotFound is
// returned when sysfs has no such function.
func (h *Host) PCIDevice(address string) (PCIDevice, error) {
	address = NormalizePCIAddress(address)
	dir := h.sys("bus", "pci", "devices", address)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return PCIDevice{}, fmt.Errorf("pci device %s: %w", address, ErrNotFound)
		}
		return PCIDevice{}, fmt.Errorf("failed to stat pci device %s: %w", address, err)
	}
	return h.readPCIDevice(address, dir), nil
}

// PCIDevices returns every PCI function on the host, sorted by address.
func (h *Host) PCIDevices() ([]PCIDevice, error) {
	entries, err := os.ReadDir(h.sys("bus", "pci", "devices"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pci devices: %w", err)
	}
	out := make([]PCIDevice, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.readPCIDevice(e.Name(), h.sys("bus", "pci", "devices", e.Name())))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (h *Host) readPCIDevice(address, dir string) PCIDevice {
	d := PCIDevice{
		Address:  address,
		VendorID: readAttr(filepath.Join(dir, "vendor")),
		DeviceID: readAttr(filepath.Join(dir, "device")),
		Class:    readAttr(filepath.Join(dir, "class")),
		Critical: true,
	}
	if target, err := os.Readlink(filepath.Join(dir, "driver")); err == nil {
		d.Driver = filepath.Base(target)
	}

	group, err := os.Readlink(filepath.Join(dir, "iommu_group"))
	if err != nil {
		d.Error = "Unable to determine iommu group"
		return d
	}
	d.IOMMUGroup = filepath.Base(group)
	d.Critical = h.groupCritical(d.IOMMUGroup)
	return d
}

func (h *Host) groupCritical(group string) bool {
	members, err := os.ReadDir(h.sys("kernel", "iommu_groups", group, "devices"))
	if err != nil {
		return false
	}
	for _, m := range members {
		class := readAttr(h.sys("bus", "pci", "devices", m.Name(), "class"))
		if len(class) >= 6 {
			if _, ok := sensitiveClasses[class[:6]]; ok {
				return true
			}
		}
	}
	return false
}
