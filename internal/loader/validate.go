package loader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/cpu"
	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator. Field names in its errors
// follow the YAML keys.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func validateVM(vm *v1alpha1.VirtualMachine) device.ValidationErrors {
	errs := validateStruct(vm)
	errs = append(errs, validateDomainSpec(&vm.Spec.DomainSpec)...)

	if vm.Spec.Nodeset != "" {
		if _, err := cpu.ParseSet(vm.Spec.Nodeset); err != nil {
			errs.Add("spec.nodeset", err.Error())
		}
	}
	if vm.Spec.MinMemory != 0 && vm.Spec.Memory != 0 && vm.Spec.MinMemory > vm.Spec.Memory {
		errs.Add("spec.minMemory", "must not be greater than memory")
	}
	if vm.Spec.EnableSecureBoot && vm.Spec.Bootloader != string(domain.BootloaderUEFI) {
		errs.Add("spec.enableSecureBoot", "requires the UEFI bootloader")
	}
	for i, d := range vm.Spec.Devices {
		if device.Kind(d.Kind) == device.KindFilesystem || device.Kind(d.Kind) == device.KindGPU {
			errs.Add(fmt.Sprintf("spec.devices[%d].kind", i), fmt.Sprintf("%s devices are only supported by containers", d.Kind))
		}
	}
	return errs
}

func validateContainer(c *v1alpha1.Container) device.ValidationErrors {
	errs := validateStruct(c)
	errs = append(errs, validateDomainSpec(&c.Spec.DomainSpec)...)

	for name := range c.Spec.Capabilities.State {
		if !domain.KnownCapability(name) {
			errs.Add("spec.capabilities.state."+name, "unknown capability")
		}
	}
	for i, d := range c.Spec.Devices {
		switch device.Kind(d.Kind) {
		case device.KindDisk, device.KindCDROM, device.KindDisplay:
			errs.Add(fmt.Sprintf("spec.devices[%d].kind", i), fmt.Sprintf("%s devices are only supported by virtual machines", d.Kind))
		}
	}
	return errs
}

func validateDomainSpec(s *v1alpha1.DomainSpec) device.ValidationErrors {
	var errs device.ValidationErrors
	if s.CPUSet != "" {
		if _, err := cpu.ParseSet(s.CPUSet); err != nil {
			errs.Add("spec.cpuset", err.Error())
		}
	}
	return errs
}

func validateStruct(v any) device.ValidationErrors {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		var errs device.ValidationErrors
		errs.Add("", err.Error())
		return errs
	}

	var errs device.ValidationErrors
	for _, fe := range verrs {
		errs.Add(fieldPath(fe.Namespace()), message(fe))
	}
	return errs
}

// fieldPath turns "VirtualMachine.spec.DomainSpec.devices[0].kind" into
// "spec.devices[0].kind".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		switch p {
		case "TypeMeta", "DomainSpec":
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "uuid":
		return "must be a valid UUID"
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
