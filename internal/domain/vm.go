package domain

import (
	"context"
	"path/filepath"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"

	"github.com/jbweber/crucible/internal/cpu"
	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/ovmf"
)

// QEMUPIDDir is where libvirt's QEMU driver writes domain pid files.
const QEMUPIDDir = "/var/run/libvirt/qemu"

// ModelCatalog reports whether libvirt knows a CPU model.
//
// In production, this is satisfied by *cpu.Catalog.
type ModelCatalog interface {
	Has(name string) bool
}

// Firmware locates OVMF images.
//
// In production, this is satisfied by *ovmf.Cache.
type Firmware interface {
	Path(name string) string
	VarsFile(code string) string
}

var (
	defaultCatalog  ModelCatalog = cpu.NewCatalog("")
	defaultFirmware Firmware     = ovmf.NewCache("")
)

// VM is a KVM guest.
type VM struct {
	cfg     VMConfiguration
	devices *device.Manager

	// Models and Firmware default to the host's libvirt CPU map and OVMF
	// directory.
	Models   ModelCatalog
	Firmware Firmware

	// PIDDir defaults to QEMUPIDDir.
	PIDDir string
}

// NewVM returns a VM for cfg. Device side effects are logged to log.
func NewVM(cfg VMConfiguration, log logr.Logger) *VM {
	return &VM{
		cfg:     cfg,
		devices: device.NewManager(cfg.Devices, cfg.UUID, log),
	}
}

func (v *VM) Config() *Configuration         { return &v.cfg.Configuration }
func (v *VM) VMConfig() *VMConfiguration     { return &v.cfg }
func (v *VM) DeviceManager() *device.Manager { return v.devices }
func (v *VM) Devices() []device.Device       { return v.devices.Devices() }

func (v *VM) models() ModelCatalog {
	if v.Models == nil {
		return defaultCatalog
	}
	return v.Models
}

func (v *VM) firmware() Firmware {
	if v.Firmware == nil {
		return defaultFirmware
	}
	return v.Firmware
}

// Prepare has nothing to set up for a VM.
func (v *VM) Prepare(context.Context) (RuntimeContext, device.Release, error) {
	return RuntimeContext{}, noRelease, nil
}

func (v *VM) PID() (int, bool) {
	dir := v.PIDDir
	if dir == "" {
		dir = QEMUPIDDir
	}
	return readPID(filepath.Join(dir, v.cfg.UUID+".pid"))
}

// Undefine removes the definition together with its NVRAM.
func (v *VM) Undefine(u Undefiner, dom libvirt.Domain) error {
	return u.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram)
}
