package v1alpha1

import (
	"github.com/google/uuid"
)

const (
	// GroupName is the API group for crucible definitions.
	GroupName = "crucible.jbweber.dev"

	// Version is the API version.
	Version = "v1alpha1"

	// APIVersion is the apiVersion every definition carries.
	APIVersion = GroupName + "/" + Version

	// VirtualMachineKind is the kind string for VirtualMachine resources.
	VirtualMachineKind = "VirtualMachine"

	// ContainerKind is the kind string for Container resources.
	ContainerKind = "Container"

	// DefaultShutdownTimeout is the shutdown timeout in seconds when none is
	// set.
	DefaultShutdownTimeout = 90
)

// uidNamespace scopes derived domain UUIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(GroupName))

// DerivedUID returns the UUID used for a definition of kind named name that
// does not set metadata.uid.
func DerivedUID(kind, name string) string {
	return uuid.NewSHA1(uidNamespace, []byte(kind+"/"+name)).String()
}

// NewVirtualMachine creates a VirtualMachine with TypeMeta and ObjectMeta set.
func NewVirtualMachine(name string) *VirtualMachine {
	return &VirtualMachine{
		TypeMeta: TypeMeta{APIVersion: APIVersion, Kind: VirtualMachineKind},
		ObjectMeta: ObjectMeta{
			Name: name,
			UID:  DerivedUID(VirtualMachineKind, name),
		},
	}
}

// NewContainer creates a Container with TypeMeta and ObjectMeta set.
func NewContainer(name string) *Container {
	return &Container{
		TypeMeta: TypeMeta{APIVersion: APIVersion, Kind: ContainerKind},
		ObjectMeta: ObjectMeta{
			Name: name,
			UID:  DerivedUID(ContainerKind, name),
		},
	}
}

// SetDefaultAPIVersion fills in apiVersion and kind when they are missing.
func (vm *VirtualMachine) SetDefaultAPIVersion() {
	setTypeMeta(&vm.TypeMeta, VirtualMachineKind)
}

// SetDefaultAPIVersion fills in apiVersion and kind when they are missing.
func (c *Container) SetDefaultAPIVersion() {
	setTypeMeta(&c.TypeMeta, ContainerKind)
}

func setTypeMeta(tm *TypeMeta, kind string) {
	if tm.APIVersion == "" {
		tm.APIVersion = APIVersion
	}
	if tm.Kind == "" {
		tm.Kind = kind
	}
}

// GetUID returns metadata.uid, or the derived UUID when it is unset.
func (vm *VirtualMachine) GetUID() string {
	if vm.UID != "" {
		return vm.UID
	}
	return DerivedUID(VirtualMachineKind, vm.Name)
}

// GetUID returns metadata.uid, or the derived UUID when it is unset.
func (c *Container) GetUID() string {
	if c.UID != "" {
		return c.UID
	}
	return DerivedUID(ContainerKind, c.Name)
}

// GetShutdownTimeout returns the shutdown timeout in seconds.
func (s *DomainSpec) GetShutdownTimeout() int {
	if s.ShutdownTimeout == 0 {
		return DefaultShutdownTimeout
	}
	return s.ShutdownTimeout
}
