package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/device"
)

func on() *libvirtxml.DomainFeatureState {
	return &libvirtxml.DomainFeatureState{State: "on"}
}

// Description renders the KVM definition.
func (v *VM) Description(RuntimeContext) (*libvirtxml.Domain, error) {
	c := &v.cfg
	d := describe(&c.Configuration, "kvm", v1alpha1.VirtualMachineKind)

	d.OS = v.os()

	cpu, tune, err := v.cpu()
	if err != nil {
		return nil, err
	}
	d.CPU = cpu
	d.CPUTune = tune
	if c.Nodeset != "" {
		d.NUMATune = &libvirtxml.DomainNUMATune{
			Memory: &libvirtxml.DomainNUMATuneMemory{Nodeset: c.Nodeset},
		}
	}

	if c.MinMemory != 0 {
		d.CurrentMemory = &libvirtxml.DomainCurrentMemory{Value: c.MinMemory, Unit: "M"}
	}

	if c.HypervEnlightenments {
		d.Clock.Timer = append(d.Clock.Timer, libvirtxml.DomainTimer{Name: "hypervclock", Present: "yes"})
	}

	v.devicesExtra(d.Devices)
	d.Features = v.features()

	args, err := shellquote.Split(c.CommandLineArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command line args: %w", err)
	}
	d.QEMUCommandline = &libvirtxml.DomainQEMUCommandline{}
	for _, a := range args {
		d.QEMUCommandline.Args = append(d.QEMUCommandline.Args, libvirtxml.DomainQEMUCommandlineArg{Value: a})
	}

	return d, nil
}

func (v *VM) os() *libvirtxml.DomainOS {
	c := &v.cfg
	os := &libvirtxml.DomainOS{
		Type: &libvirtxml.DomainOSType{Type: "hvm", Arch: c.ArchType, Machine: c.MachineType},
	}
	if c.Bootloader != BootloaderUEFI {
		return os
	}

	secure := "no"
	if c.EnableSecureBoot {
		secure = "yes"
	}
	fw := v.firmware()
	os.Loader = &libvirtxml.DomainLoader{
		Path:     fw.Path(c.BootloaderOVMF),
		Readonly: "yes",
		Secure:   secure,
		Type:     "pflash",
	}
	os.NVRam = &libvirtxml.DomainNVRam{NVRam: c.NVRAMPath}
	if vars := fw.VarsFile(c.BootloaderOVMF); vars != "" {
		os.NVRam.Template = vars
	}
	return os
}

func (v *VM) cpu() (*libvirtxml.DomainCPU, *libvirtxml.DomainCPUTune, error) {
	c := &v.cfg
	cpu := &libvirtxml.DomainCPU{Mode: strings.ToLower(string(c.CPUMode))}
	// With no topology configured libvirt picks one for the vcpu count.
	if c.VCPUs != 0 || c.Cores != 0 || c.Threads != 0 {
		cpu.Topology = &libvirtxml.DomainCPUTopology{
			Sockets: int(orOne(c.VCPUs)),
			Cores:   int(orOne(c.Cores)),
			Threads: int(orOne(c.Threads)),
		}
	}

	switch c.CPUMode {
	case CPUModeCustom:
		// Unknown models are left out so libvirt does not refuse the domain.
		if c.CPUModel != "" && v.models().Has(c.CPUModel) {
			cpu.Model = &libvirtxml.DomainCPUModel{Fallback: "forbid", Value: c.CPUModel}
		}
	case CPUModeHostPassthrough:
		cpu.Cache = &libvirtxml.DomainCPUCache{Mode: "passthrough"}
		if c.EnableCPUTopologyExtension {
			cpu.Features = append(cpu.Features, libvirtxml.DomainCPUFeature{Name: "topoext", Policy: "require"})
		}
	}

	if c.CPUSet == "" || !c.PinVCPUs {
		return cpu, nil, nil
	}
	cpus, err := c.CPUSetList()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cpuset %q: %w", c.CPUSet, err)
	}
	tune := &libvirtxml.DomainCPUTune{}
	for i, n := range cpus {
		tune.VCPUPin = append(tune.VCPUPin, libvirtxml.DomainCPUTuneVCPUPin{
			VCPU:   uint(i),
			CPUSet: strconv.Itoa(n),
		})
	}
	return cpu, tune, nil
}

func (v *VM) devicesExtra(devs *libvirtxml.DomainDeviceList) {
	c := &v.cfg

	display, spice := false, false
	for _, dev := range c.Devices {
		if d, ok := dev.(*device.Display); ok {
			display = true
			if d.Type == device.DisplayTypeSPICE {
				spice = true
				break
			}
		}
	}

	if c.EnsureDisplayDevice && !display {
		// Most headless guests still need a video device to boot.
		devs.Videos = append(devs.Videos, libvirtxml.DomainVideo{Model: libvirtxml.DomainVideoModel{Type: "vga"}})
	}

	if spice {
		devs.Channels = append(devs.Channels, libvirtxml.DomainChannel{
			Source: &libvirtxml.DomainChardevSource{SpiceVMC: &libvirtxml.DomainChardevSourceSpiceVMC{}},
			Target: &libvirtxml.DomainChannelTarget{
				VirtIO: &libvirtxml.DomainChannelTargetVirtIO{Name: "com.redhat.spice.0"},
			},
		})
	}

	if c.TrustedPlatformModule {
		devs.TPMs = append(devs.TPMs, libvirtxml.DomainTPM{
			Model: "tpm-crb",
			Backend: &libvirtxml.DomainTPMBackend{
				Emulator: &libvirtxml.DomainTPMBackendEmulator{Version: "2.0"},
			},
		})
	}

	devs.Channels = append(devs.Channels, libvirtxml.DomainChannel{
		Source: &libvirtxml.DomainChardevSource{UNIX: &libvirtxml.DomainChardevSourceUNIX{}},
		Target: &libvirtxml.DomainChannelTarget{
			VirtIO: &libvirtxml.DomainChannelTargetVirtIO{Name: "org.qemu.guest_agent.0"},
		},
	})
	devs.Serials = append(devs.Serials, libvirtxml.DomainSerial{
		Source: &libvirtxml.DomainChardevSource{Pty: &libvirtxml.DomainChardevSourcePty{}},
	})

	if c.MinMemory != 0 {
		devs.MemBalloon = &libvirtxml.DomainMemBalloon{Model: "virtio", AutoDeflate: "on"}
	}
}

func (v *VM) features() *libvirtxml.DomainFeatureList {
	c := &v.cfg
	f := &libvirtxml.DomainFeatureList{
		ACPI: &libvirtxml.DomainFeature{},
		APIC: &libvirtxml.DomainFeatureAPIC{},
		MSRS: &libvirtxml.DomainFeatureMSRS{Unknown: "ignore"},
	}

	if c.HideFromMSR {
		f.KVM = &libvirtxml.DomainFeatureKVM{Hidden: on()}
	}

	if c.HypervEnlightenments {
		// vpindex must be on for synic, ipi, tlbflush and stimer.
		f.HyperV = &libvirtxml.DomainFeatureHyperV{
			Relaxed:     on(),
			VAPIC:       on(),
			Spinlocks:   &libvirtxml.DomainFeatureHyperVSpinlocks{DomainFeatureState: *on(), Retries: 8191},
			Reset:       on(),
			Frequencies: on(),
			VPIndex:     on(),
			Synic:       on(),
			IPI:         on(),
			TLBFlush:    &libvirtxml.DomainFeatureHyperVTLBFlush{DomainFeatureState: *on()},
			STimer:      &libvirtxml.DomainFeatureHyperVSTimer{DomainFeatureState: *on()},
		}
	}

	if c.EnableSecureBoot {
		f.SMM = &libvirtxml.DomainFeatureSMM{State: "on"}
	}
	return f
}
