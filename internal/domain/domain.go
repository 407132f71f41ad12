package domain

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/device"
)

// RuntimeContext carries what Prepare set up on the host into Description.
type RuntimeContext struct {
	// Root is the container root as libvirt should mount it. Unused for VMs.
	Root string
}

// Undefiner removes a domain definition from libvirt.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
type Undefiner interface {
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
}

// Domain is a virtual machine or a container.
type Domain interface {
	Config() *Configuration
	DeviceManager() *device.Manager
	Devices() []device.Device

	// Prepare sets up host resources the domain needs while it runs. The
	// returned Release undoes it.
	Prepare(ctx context.Context) (RuntimeContext, device.Release, error)

	// Description renders the libvirt domain definition.
	Description(rc RuntimeContext) (*libvirtxml.Domain, error)

	// PID returns the process id of the running domain, if any.
	PID() (int, bool)

	Undefine(u Undefiner, dom libvirt.Domain) error
}

func noRelease() error { return nil }

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}
