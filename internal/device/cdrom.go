package device

import (
	"fmt"
	"os"

	"github.com/kdomanski/iso9660"
	"libvirt.org/go/libvirtxml"
)

// CDROM is an ISO image attached as a sata optical drive.
type CDROM struct {
	Base

	Path string
}

func (d *CDROM) Kind() Kind       { return KindCDROM }
func (d *CDROM) Identity() string { return d.Path }

func (d *CDROM) IsAvailable() bool {
	return d.allowed(d) && pathExists(d.Path)
}

func (d *CDROM) Validate() ValidationErrors {
	var errs ValidationErrors
	switch {
	case d.Path == "":
		errs.Add("path", "This field is required.")
	case !pathExists(d.Path):
		errs.Add("path", fmt.Sprintf("%s does not exist", d.Path))
	default:
		if err := checkISO(d.Path); err != nil {
			errs.Add("path", fmt.Sprintf("%s is not a valid ISO 9660 image: %v", d.Path, err))
		}
	}
	return errs
}

// checkISO opens path as an ISO 9660 image and reads its root directory.
func checkISO(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	img, err := iso9660.OpenImage(f)
	if err != nil {
		return err
	}
	_, err = img.RootDir()
	return err
}

func (d *CDROM) Render(c *Counters) Fragment {
	dev := "sd" + c.SCSIDevice()
	boot := c.BootNo()

	var f Fragment
	f.Disks = append(f.Disks, libvirtxml.DomainDisk{
		Device: "cdrom",
		Driver: &libvirtxml.DomainDiskDriver{Name: "qemu", Type: "raw"},
		Source: &libvirtxml.DomainDiskSource{File: &libvirtxml.DomainDiskSourceFile{File: d.Path}},
		Target: &libvirtxml.DomainDiskTarget{Dev: dev, Bus: "sata"},
		Boot:   &libvirtxml.DomainDeviceBoot{Order: boot},
	})
	return f
}
