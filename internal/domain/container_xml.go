package domain

import (
	"fmt"
	"sort"

	"github.com/kballard/go-shellquote"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/device"
)

const lxcEmulator = "/usr/lib/libvirt/libvirt_lxc"

// Full 32-bit id range, used when no id mapping is configured so libvirt
// still creates a user namespace.
const identityIDCount = 4294967295

// Description renders the LXC definition. rc.Root is the root Prepare
// returned.
func (c *Container) Description(rc RuntimeContext) (*libvirtxml.Domain, error) {
	cfg := &c.cfg
	d := describe(&cfg.Configuration, "lxc", v1alpha1.ContainerKind)

	os, err := c.os()
	if err != nil {
		return nil, err
	}
	d.OS = os

	root := rc.Root
	if root == "" {
		root = cfg.Root
	}
	d.Devices.Emulator = lxcEmulator
	d.Devices.Consoles = append(d.Devices.Consoles, libvirtxml.DomainConsole{
		Source: &libvirtxml.DomainChardevSource{Pty: &libvirtxml.DomainChardevSourcePty{}},
	})
	d.Devices.Filesystems = append(d.Devices.Filesystems, libvirtxml.DomainFilesystem{
		Source: &libvirtxml.DomainFilesystemSource{Mount: &libvirtxml.DomainFilesystemSourceMount{Dir: root}},
		Target: &libvirtxml.DomainFilesystemTarget{Dir: "/"},
	})

	// Driver nodes such as /dev/kfd are shared by all GPUs of a vendor, so
	// they are passed once.
	for _, dev := range cfg.Devices {
		if gpu, ok := dev.(*device.GPU); ok && gpu.UsesDriverNodes() {
			f := gpu.DriverFragment()
			d.Devices.Hostdevs = append(d.Devices.Hostdevs, f.Hostdevs...)
			break
		}
	}

	caps, err := capabilities(cfg.CapabilitiesPolicy, cfg.CapabilitiesState)
	if err != nil {
		return nil, err
	}
	d.Features.Capabilities = caps

	d.IDMap = idmap(cfg.IDMap)
	return d, nil
}

func (c *Container) os() (*libvirtxml.DomainOS, error) {
	cfg := &c.cfg
	init, err := shellquote.Split(cfg.Init)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init: %w", err)
	}
	if len(init) == 0 {
		return nil, fmt.Errorf("init command is empty")
	}

	os := &libvirtxml.DomainOS{
		Type:      &libvirtxml.DomainOSType{Type: "exe"},
		Init:      init[0],
		InitArgs:  init[1:],
		InitDir:   cfg.InitDir,
		InitUser:  cfg.InitUser,
		InitGroup: cfg.InitGroup,
	}

	names := make([]string, 0, len(cfg.InitEnv))
	for name := range cfg.InitEnv {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		os.InitEnv = append(os.InitEnv, libvirtxml.DomainOSInitEnv{Name: name, Value: cfg.InitEnv[name]})
	}
	return os, nil
}

func idmap(m *IDMap) *libvirtxml.DomainIDMap {
	uid := IDMapRange{Count: identityIDCount}
	gid := uid
	if m != nil {
		uid, gid = m.UID, m.GID
	}
	return &libvirtxml.DomainIDMap{
		UIDs: []libvirtxml.DomainIDMapRange{{Start: 0, Target: uid.Target, Count: uid.Count}},
		GIDs: []libvirtxml.DomainIDMapRange{{Start: 0, Target: gid.Target, Count: gid.Count}},
	}
}

func capabilities(policy CapabilitiesPolicy, state map[string]bool) (*libvirtxml.DomainFeatureCapabilities, error) {
	if policy == "" {
		policy = CapabilitiesDefault
	}
	caps := &libvirtxml.DomainFeatureCapabilities{Policy: string(policy)}
	for name, enabled := range state {
		field := capabilityField(caps, name)
		if field == nil {
			return nil, fmt.Errorf("unknown capability %q", name)
		}
		s := "off"
		if enabled {
			s = "on"
		}
		*field = &libvirtxml.DomainFeatureCapability{State: s}
	}
	return caps, nil
}

// KnownCapability reports whether name is a Linux capability libvirt can
// toggle for a container.
func KnownCapability(name string) bool {
	return capabilityField(&libvirtxml.DomainFeatureCapabilities{}, name) != nil
}

func capabilityField(c *libvirtxml.DomainFeatureCapabilities, name string) **libvirtxml.DomainFeatureCapability {
	switch name {
	case "audit_control":
		return &c.AuditControl
	case "audit_write":
		return &c.AuditWrite
	case "block_suspend":
		return &c.BlockSuspend
	case "chown":
		return &c.Chown
	case "dac_override":
		return &c.DACOverride
	case "dac_read_search":
		return &c.DACReadSearch
	case "fowner":
		return &c.FOwner
	case "fsetid":
		return &c.FSetID
	case "ipc_lock":
		return &c.IPCLock
	case "ipc_owner":
		return &c.IPCOwner
	case "kill":
		return &c.Kill
	case "lease":
		return &c.Lease
	case "linux_immutable":
		return &c.LinuxImmutable
	case "mac_admin":
		return &c.MACAdmin
	case "mac_override":
		return &c.MACOverride
	case "mknod":
		return &c.MkNod
	case "net_admin":
		return &c.NetAdmin
	case "net_bind_service":
		return &c.NetBindService
	case "net_broadcast":
		return &c.NetBroadcast
	case "net_raw":
		return &c.NetRaw
	case "setgid":
		return &c.SetGID
	case "setfcap":
		return &c.SetFCap
	case "setpcap":
		return &c.SetPCap
	case "setuid":
		return &c.SetUID
	case "sys_admin":
		return &c.SysAdmin
	case "sys_boot":
		return &c.SysBoot
	case "sys_chroot":
		return &c.SysChRoot
	case "sys_module":
		return &c.SysModule
	case "sys_nice":
		return &c.SysNice
	case "sys_pacct":
		return &c.SysPAcct
	case "sys_ptrace":
		return &c.SysPTrace
	case "sys_rawio":
		return &c.SysRawIO
	case "sys_resource":
		return &c.SysResource
	case "sys_time":
		return &c.SysTime
	case "sys_tty_config":
		return &c.SysTTYCnofig
	case "syslog":
		return &c.SysLog
	case "wake_alarm":
		return &c.WakeAlarm
	}
	return nil
}
