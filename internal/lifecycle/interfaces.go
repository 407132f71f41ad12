package lifecycle

import (
	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

// libvirtClient defines the libvirt operations the manager needs.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	device.DomainLister
	device.NodeDeviceClient
	domain.Undefiner

	// DomainLookupByUUID looks up a domain by uuid
	DomainLookupByUUID(uuid libvirt.UUID) (libvirt.Domain, error)

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(xml string) (libvirt.Domain, error)

	// DomainCreate starts a defined domain
	DomainCreate(dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainIsActive reports 1 when the domain is running or paused
	DomainIsActive(dom libvirt.Domain) (int32, error)

	// DomainShutdown asks the guest to shut down
	DomainShutdown(dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(dom libvirt.Domain) error

	// DomainSuspend pauses a domain
	DomainSuspend(dom libvirt.Domain) error

	// DomainResume unpauses a domain
	DomainResume(dom libvirt.Domain) error
}
