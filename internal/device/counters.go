package device

// Counters hands out positional numbers while a single domain description is
// rendered. A fresh instance must be used for every render.
type Counters struct {
	bootNo   uint
	scsiNo   int
	virtioNo int

	usbNext        uint
	usbControllers map[string]uint
}

// NewCounters returns counters with the implicit nec-xhci controller seeded
// at index 0, since libvirt adds one to every domain.
func NewCounters() *Counters {
	return &Counters{
		usbNext:        1,
		usbControllers: map[string]uint{"nec-xhci": 0},
	}
}

// BootNo returns the next boot order, starting at 1.
func (c *Counters) BootNo() uint {
	c.bootNo++
	return c.bootNo
}

// SCSIDevice returns the next letter suffix for sata targets ("a", "b", ...).
func (c *Counters) SCSIDevice() string {
	c.scsiNo++
	return DiskFromNumber(c.scsiNo)
}

// VirtioDevice returns the next letter suffix for virtio targets.
func (c *Counters) VirtioDevice() string {
	c.virtioNo++
	return DiskFromNumber(c.virtioNo)
}

// USBControllerNo returns the controller index for a controller type,
// allocating a new one the first time a type is seen.
func (c *Counters) USBControllerNo(controllerType string) uint {
	if no, ok := c.usbControllers[controllerType]; ok {
		return no
	}
	no := c.usbNext
	c.usbNext++
	c.usbControllers[controllerType] = no
	return no
}

// DiskFromNumber converts a 1-based index into the letter suffix libvirt uses
// for disk targets: 1 -> a, 26 -> z, 27 -> aa. Non-positive input yields "".
func DiskFromNumber(n int) string {
	var out []byte
	for n > 0 {
		d := n % 26
		n /= 26
		if d == 0 {
			d = 26
			n--
		}
		out = append(out, byte('a'+d-1))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
