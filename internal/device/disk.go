package device

import (
	"strings"

	"libvirt.org/go/libvirtxml"
)

// DiskType selects how the disk's backing path is attached.
type DiskType string

const (
	DiskTypeFile  DiskType = "FILE"
	DiskTypeBlock DiskType = "BLOCK"
)

// DiskBus selects the guest bus and with it the target letter stream.
type DiskBus string

const (
	DiskBusAHCI   DiskBus = "AHCI"
	DiskBusVirtio DiskBus = "VIRTIO"
)

// IOType is the QEMU I/O backend for a disk.
type IOType string

const (
	IOTypeNative  IOType = "NATIVE"
	IOTypeThreads IOType = "THREADS"
	IOTypeIOURing IOType = "IO_URING"
)

// Disk is a raw image file or a zvol block device.
type Disk struct {
	Base

	Type               DiskType
	Bus                DiskBus
	Path               string
	IOType             IOType
	Serial             string
	LogicalSectorSize  uint
	PhysicalSectorSize uint
}

func (d *Disk) Kind() Kind       { return KindDisk }
func (d *Disk) Identity() string { return d.Path }

func (d *Disk) IsAvailable() bool {
	return d.allowed(d) && pathExists(d.Path)
}

func (d *Disk) Validate() ValidationErrors {
	var errs ValidationErrors
	if d.PhysicalSectorSize != 0 && d.LogicalSectorSize == 0 {
		errs.Add("logical_sectorsize",
			`This field "logical_sectorsize" must be provided when physical_sectorsize is specified.`)
	}
	if d.Path == "" {
		errs.Add("path", "This field is required.")
	} else if d.Type == DiskTypeBlock && !strings.HasPrefix(d.Path, "/dev/zvol/") {
		errs.Add("path", "Disk path must start with '/dev/zvol/'.")
	}
	return errs
}

func (d *Disk) Render(c *Counters) Fragment {
	disk := libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name:    "qemu",
			Type:    "raw",
			Cache:   "none",
			Discard: "unmap",
			IO:      strings.ToLower(string(d.IOType)),
		},
		Serial: d.Serial,
	}

	if d.Type == DiskTypeBlock {
		disk.Source = &libvirtxml.DomainDiskSource{Block: &libvirtxml.DomainDiskSourceBlock{Dev: d.Path}}
	} else {
		disk.Source = &libvirtxml.DomainDiskSource{File: &libvirtxml.DomainDiskSourceFile{File: d.Path}}
	}

	if d.Bus == DiskBusVirtio {
		disk.Target = &libvirtxml.DomainDiskTarget{Dev: "vd" + c.VirtioDevice(), Bus: "virtio"}
	} else {
		disk.Target = &libvirtxml.DomainDiskTarget{Dev: "sd" + c.SCSIDevice(), Bus: "sata"}
	}
	disk.Boot = &libvirtxml.DomainDeviceBoot{Order: c.BootNo()}

	if d.LogicalSectorSize != 0 {
		disk.BlockIO = &libvirtxml.DomainDiskBlockIO{LogicalBlockSize: d.LogicalSectorSize}
		if d.PhysicalSectorSize != 0 {
			disk.BlockIO.PhysicalBlockSize = d.PhysicalSectorSize
		}
	}

	var f Fragment
	f.Disks = append(f.Disks, disk)
	return f
}
