package hostdev

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// GPU vendors, keyed by PCI vendor id.
var gpuVendors = map[string]string{
	"0x1002": "AMD",
	"0x8086": "INTEL",
	"0x10de": "NVIDIA",
}

// GPU is a display-class PCI function from a known vendor.
type GPU struct {
	Address string
	Vendor  string
}

// GPUs returns every display controller (PCI class 0x03xxxx) whose vendor
// is recognized.
func (h *Host) GPUs() ([]GPU, error) {
	devices, err := h.PCIDevices()
	if err != nil {
		return nil, err
	}
	var out []GPU
	for _, d := range devices {
		if !strings.HasPrefix(d.Class, "0x03") {
			continue
		}
		vendor, ok := gpuVendors[strings.ToLower(d.VendorID)]
		if !ok {
			continue
		}
		out = append(out, GPU{Address: d.Address, Vendor: vendor})
	}
	return out, nil
}

// RenderNode returns the /dev/dri render node of the GPU at address, if
// sysfs lists one and the node exists.
func (h *Host) RenderNode(address string) (string, bool) {
	entries, err := os.ReadDir(h.sys("bus", "pci", "devices", address, "drm"))
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "render") {
			continue
		}
		node := "/dev/dri/" + e.Name()
		if h.DeviceNodeExists(node) {
			return node, true
		}
		return "", false
	}
	return "", false
}

// NVIDIADeviceNode returns /dev/nvidia<minor> for the GPU at address, using
// the minor number the driver reports in procfs.
func (h *Host) NVIDIADeviceNode(address string) (string, bool) {
	f, err := os.Open(h.proc("driver", "nvidia", "gpus", address, "information"))
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	minor, ok := parseNVIDIAMinor(f)
	if !ok {
		return "", false
	}
	node := "/dev/nvidia" + strconv.Itoa(minor)
	if !h.DeviceNodeExists(node) {
		return "", false
	}
	return node, true
}

func parseNVIDIAMinor(r io.Reader) (int, bool) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		key, value, ok := strings.Cut(s.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Device Minor" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
