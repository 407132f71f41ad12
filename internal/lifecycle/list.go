package lifecycle

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"

	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
	"github.com/jbweber/crucible/internal/metadata"
)

// DomainInfo describes a domain defined in libvirt.
type DomainInfo struct {
	UUID string
	Name string
	// Kind is empty for domains crucible did not define.
	Kind  string
	State crlibvirt.DomainState
	VCPUs uint
	// Memory is in MiB.
	Memory uint
}

// ListDomains lists every domain defined on the manager's driver, running or
// not. Domains that cannot be inspected are logged and skipped.
func (m *Manager) ListDomains(ctx context.Context) ([]DomainInfo, error) {
	lv, err := m.client(ctx)
	if err != nil {
		return nil, err
	}

	// 0 selects active and inactive domains
	doms, _, err := lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	infos := make([]DomainInfo, 0, len(doms))
	for _, dom := range doms {
		info, err := domainInfo(lv, dom)
		if err != nil {
			m.log.Error(err, "Failed to inspect domain", "domain", dom.Name)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func domainInfo(lv libvirtClient, dom libvirt.Domain) (DomainInfo, error) {
	state, _, err := lv.DomainGetState(dom, 0)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("failed to get domain state: %w", err)
	}
	desc, err := lv.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("failed to get domain XML: %w", err)
	}

	info, err := infoFromXML(desc)
	if err != nil {
		return DomainInfo{}, err
	}
	info.State = crlibvirt.StateFromLibvirt(state)
	return info, nil
}

// infoFromXML reads a domain definition. Domains defined by crucible carry a
// resource record; others are named by title, then by libvirt name.
func infoFromXML(desc string) (DomainInfo, error) {
	var d libvirtxml.Domain
	if err := d.Unmarshal(desc); err != nil {
		return DomainInfo{}, fmt.Errorf("failed to parse domain XML: %w", err)
	}

	info := DomainInfo{UUID: d.UUID, Name: d.Title}
	if info.Name == "" {
		info.Name = d.Name
	}
	r, ok, err := metadata.Get(&d)
	if err != nil {
		return DomainInfo{}, err
	}
	if ok {
		info.Kind, info.Name = r.Kind, r.Name
	}
	if d.VCPU != nil {
		info.VCPUs = d.VCPU.Value
	}
	if d.Memory != nil {
		info.Memory = memoryMiB(d.Memory.Value, d.Memory.Unit)
	}
	return info, nil
}

func memoryMiB(value uint, unit string) uint {
	switch unit {
	case "b", "bytes":
		return value / (1024 * 1024)
	case "M", "MiB":
		return value
	case "G", "GiB":
		return value * 1024
	case "T", "TiB":
		return value * 1024 * 1024
	}
	// KiB is libvirt's default unit
	return value / 1024
}
