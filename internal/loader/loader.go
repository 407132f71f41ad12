// Package loader reads VirtualMachine and Container definitions from YAML
// and turns them into domains.
package loader

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

// Options controls how definitions become domains. Zero values fall back to
// the running host.
type Options struct {
	Log      logr.Logger
	Delegate device.Delegate

	// Models and Firmware are handed to every VM.
	Models   domain.ModelCatalog
	Firmware domain.Firmware

	// IDMappedRootDir is handed to every container.
	IDMappedRootDir string

	// Host fact providers handed to devices that inspect the host.
	PCIFacts device.PCIFacts
	USBFacts device.USBFacts
	GPUFacts device.GPUFacts
	Links    device.LinkFacts
}

// LoadFromFile loads a VirtualMachine or Container definition from a YAML
// file.
func LoadFromFile(path string, opts Options) (domain.Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return LoadFromYAML(data, opts)
}

// LoadFromYAML decodes, defaults and validates a definition, then builds the
// domain it describes. Validation failures are returned as
// device.ValidationErrors.
func LoadFromYAML(data []byte, opts Options) (domain.Domain, error) {
	kind, err := PeekKind(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case v1alpha1.VirtualMachineKind:
		vm, err := DecodeVirtualMachine(data)
		if err != nil {
			return nil, err
		}
		return BuildVM(vm, opts)
	case v1alpha1.ContainerKind:
		c, err := DecodeContainer(data)
		if err != nil {
			return nil, err
		}
		return BuildContainer(c, opts)
	}
	return nil, fmt.Errorf("unsupported kind: %s (expected: %s or %s)",
		kind, v1alpha1.VirtualMachineKind, v1alpha1.ContainerKind)
}

// PeekKind returns the kind of a definition after checking its apiVersion.
func PeekKind(data []byte) (string, error) {
	var tm v1alpha1.TypeMeta
	if err := yaml.Unmarshal(data, &tm); err != nil {
		return "", fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := checkTypeMeta(tm, tm.Kind); err != nil {
		return "", err
	}
	return tm.Kind, nil
}

func checkTypeMeta(tm v1alpha1.TypeMeta, kind string) error {
	if tm.APIVersion == "" {
		return fmt.Errorf("missing required field: apiVersion")
	}
	if tm.Kind == "" {
		return fmt.Errorf("missing required field: kind")
	}
	if tm.APIVersion != v1alpha1.APIVersion {
		return fmt.Errorf("unsupported apiVersion: %s (expected: %s)", tm.APIVersion, v1alpha1.APIVersion)
	}
	if tm.Kind != kind {
		return fmt.Errorf("unsupported kind: %s (expected: %s)", tm.Kind, kind)
	}
	return nil
}

// DecodeVirtualMachine decodes, defaults and validates a VirtualMachine.
func DecodeVirtualMachine(data []byte) (*v1alpha1.VirtualMachine, error) {
	var vm v1alpha1.VirtualMachine
	if err := yaml.Unmarshal(data, &vm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := checkTypeMeta(vm.TypeMeta, v1alpha1.VirtualMachineKind); err != nil {
		return nil, err
	}

	applyVMDefaults(&vm)

	if errs := validateVM(&vm); len(errs) > 0 {
		return nil, errs
	}
	return &vm, nil
}

// DecodeContainer decodes, defaults and validates a Container.
func DecodeContainer(data []byte) (*v1alpha1.Container, error) {
	var c v1alpha1.Container
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := checkTypeMeta(c.TypeMeta, v1alpha1.ContainerKind); err != nil {
		return nil, err
	}

	applyContainerDefaults(&c)

	if errs := validateContainer(&c); len(errs) > 0 {
		return nil, errs
	}
	return &c, nil
}

// BuildVM turns a decoded VirtualMachine into a domain.
func BuildVM(vm *v1alpha1.VirtualMachine, opts Options) (*domain.VM, error) {
	devices, err := buildDevices(vm.Spec.Devices, opts)
	if err != nil {
		return nil, err
	}

	s := vm.Spec
	cfg := domain.VMConfiguration{
		Configuration:              configuration(vm.GetUID(), vm.Name, &s.DomainSpec, devices),
		ArchType:                   s.Arch,
		MachineType:                s.Machine,
		Bootloader:                 domain.Bootloader(s.Bootloader),
		BootloaderOVMF:             s.BootloaderOVMF,
		NVRAMPath:                  s.NVRAMPath,
		CPUMode:                    domain.CPUMode(s.CPUMode),
		CPUModel:                   s.CPUModel,
		EnableCPUTopologyExtension: s.EnableCPUTopologyExtension,
		Nodeset:                    s.Nodeset,
		PinVCPUs:                   s.PinVCPUs,
		MinMemory:                  s.MinMemory,
		EnsureDisplayDevice:        s.EnsureDisplayDevice,
		HypervEnlightenments:       s.HypervEnlightenments,
		TrustedPlatformModule:      s.TrustedPlatformModule,
		HideFromMSR:                s.HideFromMSR,
		EnableSecureBoot:           s.EnableSecureBoot,
		CommandLineArgs:            s.CommandLineArgs,
	}

	d := domain.NewVM(cfg, opts.Log.WithValues("uuid", cfg.UUID, "name", cfg.Name))
	d.Models = opts.Models
	d.Firmware = opts.Firmware
	return d, nil
}

// BuildContainer turns a decoded Container into a domain.
func BuildContainer(c *v1alpha1.Container, opts Options) (*domain.Container, error) {
	devices, err := buildDevices(c.Spec.Devices, opts)
	if err != nil {
		return nil, err
	}

	s := c.Spec
	cfg := domain.ContainerConfiguration{
		Configuration:      configuration(c.GetUID(), c.Name, &s.DomainSpec, devices),
		Root:               s.Root,
		Init:               s.Init,
		InitDir:            s.InitDir,
		InitEnv:            s.InitEnv,
		InitUser:           s.InitUser,
		InitGroup:          s.InitGroup,
		CapabilitiesPolicy: domain.CapabilitiesPolicy(s.Capabilities.Policy),
		CapabilitiesState:  s.Capabilities.State,
	}
	if s.IDMap != nil {
		cfg.IDMap = &domain.IDMap{
			UID: domain.IDMapRange{Target: s.IDMap.UID.Target, Count: s.IDMap.UID.Count},
			GID: domain.IDMapRange{Target: s.IDMap.GID.Target, Count: s.IDMap.GID.Count},
		}
	}

	d := domain.NewContainer(cfg, opts.Log.WithValues("uuid", cfg.UUID, "name", cfg.Name))
	d.IDMappedRootDir = opts.IDMappedRootDir
	return d, nil
}

func configuration(uid, name string, s *v1alpha1.DomainSpec, devices []device.Device) domain.Configuration {
	return domain.Configuration{
		UUID:            uid,
		Name:            name,
		Description:     s.Description,
		VCPUs:           s.VCPUs,
		Cores:           s.Cores,
		Threads:         s.Threads,
		CPUSet:          s.CPUSet,
		Memory:          s.Memory,
		Time:            domain.Time(s.Time),
		ShutdownTimeout: time.Duration(s.GetShutdownTimeout()) * time.Second,
		Devices:         devices,
	}
}

// IsValidationError reports whether err came from validating a definition.
func IsValidationError(err error) bool {
	var errs device.ValidationErrors
	return errors.As(err, &errs)
}
