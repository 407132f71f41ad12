package v1alpha1

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewVirtualMachine(t *testing.T) {
	vm := NewVirtualMachine("web")

	if vm.APIVersion != "crucible.jbweber.dev/v1alpha1" {
		t.Errorf("APIVersion = %q", vm.APIVersion)
	}
	if vm.Kind != VirtualMachineKind {
		t.Errorf("Kind = %q, want %q", vm.Kind, VirtualMachineKind)
	}
	if vm.Name != "web" {
		t.Errorf("Name = %q, want web", vm.Name)
	}
	if _, err := uuid.Parse(vm.UID); err != nil {
		t.Errorf("UID %q is not a UUID: %v", vm.UID, err)
	}
}

func TestNewContainer(t *testing.T) {
	c := NewContainer("db")

	if c.Kind != ContainerKind {
		t.Errorf("Kind = %q, want %q", c.Kind, ContainerKind)
	}
	if c.UID != DerivedUID(ContainerKind, "db") {
		t.Errorf("UID = %q, want derived uid", c.UID)
	}
}

func TestDerivedUID(t *testing.T) {
	a := DerivedUID(VirtualMachineKind, "web")
	if a != DerivedUID(VirtualMachineKind, "web") {
		t.Error("derived uid is not stable")
	}
	if a == DerivedUID(ContainerKind, "web") {
		t.Error("derived uid should depend on kind")
	}
	if a == DerivedUID(VirtualMachineKind, "web2") {
		t.Error("derived uid should depend on name")
	}

	id, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("derived uid %q is not a UUID: %v", a, err)
	}
	if id.Version() != 5 {
		t.Errorf("derived uid version = %d, want 5", id.Version())
	}
}

func TestGetUID(t *testing.T) {
	vm := &VirtualMachine{ObjectMeta: ObjectMeta{Name: "web"}}
	if vm.GetUID() != DerivedUID(VirtualMachineKind, "web") {
		t.Errorf("GetUID() = %q, want derived uid", vm.GetUID())
	}

	vm.UID = "0f0e0d0c-0b0a-4908-8706-050403020100"
	if vm.GetUID() != vm.UID {
		t.Errorf("GetUID() = %q, want %q", vm.GetUID(), vm.UID)
	}

	c := &Container{ObjectMeta: ObjectMeta{Name: "web"}}
	if c.GetUID() == vm.GetUID() {
		t.Error("container and vm uids should differ")
	}
}

func TestSetDefaultAPIVersion(t *testing.T) {
	tests := []struct {
		name     string
		vm       *VirtualMachine
		wantKind string
	}{
		{
			name:     "missing fields are filled",
			vm:       &VirtualMachine{},
			wantKind: VirtualMachineKind,
		},
		{
			name: "existing fields are kept",
			vm: &VirtualMachine{TypeMeta: TypeMeta{
				APIVersion: "example.com/v1",
				Kind:       "Other",
			}},
			wantKind: "Other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.vm.APIVersion
			tt.vm.SetDefaultAPIVersion()

			if tt.vm.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tt.vm.Kind, tt.wantKind)
			}
			if before != "" && tt.vm.APIVersion != before {
				t.Errorf("APIVersion changed from %q to %q", before, tt.vm.APIVersion)
			}
			if before == "" && tt.vm.APIVersion != APIVersion {
				t.Errorf("APIVersion = %q, want %q", tt.vm.APIVersion, APIVersion)
			}
		})
	}

	c := &Container{}
	c.SetDefaultAPIVersion()
	if c.Kind != ContainerKind || c.APIVersion != APIVersion {
		t.Errorf("container TypeMeta = %+v", c.TypeMeta)
	}
}

func TestGetShutdownTimeout(t *testing.T) {
	if got := (&DomainSpec{}).GetShutdownTimeout(); got != DefaultShutdownTimeout {
		t.Errorf("default = %d, want %d", got, DefaultShutdownTimeout)
	}
	if got := (&DomainSpec{ShutdownTimeout: 5}).GetShutdownTimeout(); got != 5 {
		t.Errorf("explicit = %d, want 5", got)
	}
}
