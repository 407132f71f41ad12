package hostdev

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var usbNameRE = regexp.MustCompile(`^usb_(\d+)_(\d+)$`)

// USBDevice describes one USB device. Bus and Device are decimal without
// leading zeros; the ids carry a 0x prefix, as libvirt writes them.
type USBDevice struct {
	Bus       string
	Device    string
	VendorID  string
	ProductID string
	Vendor    string
	Product   string
}

// Name returns the libvirt node device name, e.g. usb_1_2.
func (d USBDevice) Name() string {
	return fmt.Sprintf("usb_%s_%s", d.Bus, d.Device)
}

// ParseUSBName splits a libvirt USB device name into bus and device numbers.
func ParseUSBName(name string) (bus, device string, ok bool) {
	m := usbNameRE.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return trimZeros(m[1]), trimZeros(m[2]), true
}

// NormalizeUSBID lowercases an id and ensures a 0x prefix.
func NormalizeUSBID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	return "0x" + strings.TrimPrefix(id, "0x")
}

func trimZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// USBDevices returns the USB devices on the host, skipping root hubs.
func (h *Host) USBDevices() ([]USBDevice, error) {
	return h.usbDevices(true)
}

// USBByName finds a device by its libvirt name.
func (h *Host) USBByName(name string) (USBDevice, error) {
	bus, dev, ok := ParseUSBName(name)
	if !ok {
		return USBDevice{}, fmt.Errorf("invalid device name format: %s", name)
	}
	all, err := h.allUSBDevices()
	if err != nil {
		return USBDevice{}, err
	}
	for _, d := range all {
		if d.Bus == bus && d.Device == dev {
			return d, nil
		}
	}
	return USBDevice{}, fmt.Errorf("usb device %s: %w", name, ErrNotFound)
}

// USBByIDs finds the first device with the given vendor and product ids.
// Ids are accepted with or without the 0x prefix.
func (h *Host) USBByIDs(vendorID, productID string) (USBDevice, error) {
	vendorID, productID = NormalizeUSBID(vendorID), NormalizeUSBID(productID)
	all, err := h.allUSBDevices()
	if err != nil {
		return USBDevice{}, err
	}
	for _, d := range all {
		if d.VendorID == vendorID && d.ProductID == productID {
			return d, nil
		}
	}
	return USBDevice{}, fmt.Errorf("usb device %s:%s: %w", vendorID, productID, ErrNotFound)
}

// allUSBDevices includes root hubs, which may still be looked up by name.
func (h *Host) allUSBDevices() ([]USBDevice, error) {
	return h.usbDevices(false)
}

func (h *Host) usbDevices(skipHubs bool) ([]USBDevice, error) {
	root := h.sys("bus", "usb", "devices")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list usb devices: %w", err)
	}

	var out []USBDevice
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if skipHubs && readAttr(filepath.Join(dir, "bDeviceClass")) == "09" {
			continue
		}
		if d, ok := readUSBDevice(dir); ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func readUSBDevice(dir string) (USBDevice, bool) {
	bus := readAttr(filepath.Join(dir, "busnum"))
	dev := readAttr(filepath.Join(dir, "devnum"))
	if bus == "" || dev == "" {
		// interfaces (1-1:1.0) have no bus/device numbers
		return USBDevice{}, false
	}
	return USBDevice{
		Bus:       trimZeros(bus),
		Device:    trimZeros(dev),
		VendorID:  NormalizeUSBID(readAttr(filepath.Join(dir, "idVendor"))),
		ProductID: NormalizeUSBID(readAttr(filepath.Join(dir, "idProduct"))),
		Vendor:    readAttr(filepath.Join(dir, "manufacturer")),
		Product:   readAttr(filepath.Join(dir, "product")),
	}, true
}
