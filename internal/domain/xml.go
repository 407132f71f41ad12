package domain

import (
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/metadata"
)

// unsetMemoryMiB stands in for an unset memory size. libvirt requires
// <memory> for LXC, so an unlimited container gets a value no host reaches.
const unsetMemoryMiB = 1024 * 1024 * 1024

// describe builds the parts of a definition shared by both domain types.
// Devices are rendered in configuration order from one set of counters.
func describe(c *Configuration, typ, kind string) *libvirtxml.Domain {
	d := &libvirtxml.Domain{
		Type:        typ,
		Name:        c.UUID,
		UUID:        c.UUID,
		Title:       c.Name,
		Description: c.Description,
		Memory:      &libvirtxml.DomainMemory{Value: memoryMiB(c.Memory), Unit: "M"},
		Clock:       &libvirtxml.DomainClock{Offset: clockOffset(c.Time)},
		Features:    &libvirtxml.DomainFeatureList{},
	}
	metadata.Set(d, metadata.Record{Kind: kind, Name: c.Name})

	if c.VCPUs != 0 || c.Cores != 0 || c.Threads != 0 || c.CPUSet != "" {
		d.VCPU = &libvirtxml.DomainVCPU{
			CPUSet: c.CPUSet,
			Value:  orOne(c.VCPUs) * orOne(c.Cores) * orOne(c.Threads),
		}
	}

	counters := device.NewCounters()
	var f device.Fragment
	for _, dev := range c.Devices {
		f.Append(dev.Render(counters))
	}
	d.Devices = &f.DomainDeviceList

	for _, dev := range c.Devices {
		if dev.Kind() == device.KindPCI {
			// Passthrough needs guest memory pinned for DMA.
			d.MemoryBacking = &libvirtxml.DomainMemoryBacking{MemoryLocked: &libvirtxml.DomainMemoryLocked{}}
			break
		}
	}

	return d
}

func memoryMiB(m uint) uint {
	if m == 0 {
		return unsetMemoryMiB
	}
	return m
}

func clockOffset(t Time) string {
	if t == TimeLocal {
		return "localtime"
	}
	return "utc"
}

func orOne(n uint) uint {
	if n == 0 {
		return 1
	}
	return n
}

// Marshal renders a definition as the XML document libvirt accepts.
func Marshal(d *libvirtxml.Domain) (string, error) {
	return d.Marshal()
}
