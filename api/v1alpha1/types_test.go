package v1alpha1

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestVirtualMachine_YAML(t *testing.T) {
	data := []byte(`apiVersion: crucible.jbweber.dev/v1alpha1
kind: VirtualMachine
metadata:
  name: web
  labels:
    tier: frontend
spec:
  vcpus: 2
  cores: 2
  memory: 4096
  cpuMode: HOST-PASSTHROUGH
  enableSecureBoot: true
  devices:
    - kind: DISK
      path: /dev/zvol/tank/web
      type: BLOCK
      bus: VIRTIO
    - kind: NIC
      source: br0
      mac: "00:a0:98:12:34:56"
`)

	var vm VirtualMachine
	if err := yaml.Unmarshal(data, &vm); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if vm.Name != "web" || vm.Labels["tier"] != "frontend" {
		t.Errorf("metadata = %+v", vm.ObjectMeta)
	}
	if vm.Spec.VCPUs != 2 || vm.Spec.Cores != 2 || vm.Spec.Memory != 4096 {
		t.Errorf("inline domain spec not decoded: %+v", vm.Spec.DomainSpec)
	}
	if vm.Spec.CPUMode != "HOST-PASSTHROUGH" || !vm.Spec.EnableSecureBoot {
		t.Errorf("vm spec = %+v", vm.Spec)
	}
	if len(vm.Spec.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(vm.Spec.Devices))
	}
	if vm.Spec.Devices[0].Bus != "VIRTIO" || vm.Spec.Devices[1].MAC != "00:a0:98:12:34:56" {
		t.Errorf("devices = %+v", vm.Spec.Devices)
	}
}

func TestContainer_YAML(t *testing.T) {
	data := []byte(`apiVersion: crucible.jbweber.dev/v1alpha1
kind: Container
metadata:
  name: db
spec:
  root: /mnt/tank/containers/db
  init: /sbin/init --log-level=info
  initEnv:
    TERM: xterm
  idmap:
    uid: {target: 2147000001, count: 458752}
    gid: {target: 2147000001, count: 458752}
  capabilities:
    policy: deny
    state:
      sys_admin: true
`)

	var c Container
	if err := yaml.Unmarshal(data, &c); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if c.Spec.Root != "/mnt/tank/containers/db" || c.Spec.Init != "/sbin/init --log-level=info" {
		t.Errorf("spec = %+v", c.Spec)
	}
	if c.Spec.IDMap == nil || c.Spec.IDMap.UID.Target != 2147000001 || c.Spec.IDMap.GID.Count != 458752 {
		t.Errorf("idmap = %+v", c.Spec.IDMap)
	}
	if c.Spec.Capabilities.Policy != "deny" || !c.Spec.Capabilities.State["sys_admin"] {
		t.Errorf("capabilities = %+v", c.Spec.Capabilities)
	}
	if c.Spec.InitEnv["TERM"] != "xterm" {
		t.Errorf("initEnv = %v", c.Spec.InitEnv)
	}
}

func TestContainer_DeepCopy(t *testing.T) {
	orig := NewContainer("db")
	orig.Labels = map[string]string{"a": "b"}
	orig.Spec.InitEnv = map[string]string{"TERM": "xterm"}
	orig.Spec.IDMap = &IDMapSpec{UID: IDMapRange{Target: 1, Count: 2}}
	orig.Spec.Capabilities.State = map[string]bool{"mknod": true}
	orig.Spec.Devices = []DeviceSpec{{Kind: "FILESYSTEM", Source: "/a", Target: "/b"}}

	cp := orig.DeepCopy()
	cp.Labels["a"] = "changed"
	cp.Spec.InitEnv["TERM"] = "changed"
	cp.Spec.IDMap.UID.Count = 99
	cp.Spec.Capabilities.State["mknod"] = false
	cp.Spec.Devices[0].Source = "/changed"

	if orig.Labels["a"] != "b" {
		t.Error("labels were shared")
	}
	if orig.Spec.InitEnv["TERM"] != "xterm" {
		t.Error("initEnv was shared")
	}
	if orig.Spec.IDMap.UID.Count != 2 {
		t.Error("idmap was shared")
	}
	if !orig.Spec.Capabilities.State["mknod"] {
		t.Error("capability state was shared")
	}
	if orig.Spec.Devices[0].Source != "/a" {
		t.Error("devices were shared")
	}
}

func TestVirtualMachine_DeepCopy(t *testing.T) {
	if (*VirtualMachine)(nil).DeepCopy() != nil {
		t.Error("DeepCopy of nil should be nil")
	}

	orig := NewVirtualMachine("web")
	orig.Spec.Devices = []DeviceSpec{{Kind: "DISK", Path: "/a"}}
	cp := orig.DeepCopy()
	cp.Spec.Devices[0].Path = "/changed"
	cp.Name = "other"

	if orig.Spec.Devices[0].Path != "/a" || orig.Name != "web" {
		t.Errorf("original modified: %+v", orig)
	}
}
