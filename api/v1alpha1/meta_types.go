// Package v1alpha1 contains the definition file types for
// crucible.jbweber.dev/v1alpha1.
//
// The types follow Kubernetes API conventions (TypeMeta, ObjectMeta, Spec)
// without depending on k8s.io/apimachinery, so definitions read like any
// other declarative resource:
//
//	apiVersion: crucible.jbweber.dev/v1alpha1
//	kind: VirtualMachine
//	metadata:
//	  name: web
//	spec:
//	  vcpus: 2
//	  memory: 4096
//	  devices:
//	    - kind: DISK
//	      path: /dev/zvol/tank/web
//	      type: BLOCK
//	      bus: VIRTIO
package v1alpha1

// TypeMeta describes an individual object's type and API version.
type TypeMeta struct {
	// Kind is VirtualMachine or Container.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty" validate:"required"`

	// APIVersion must be crucible.jbweber.dev/v1alpha1.
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty" validate:"required"`
}

// ObjectMeta identifies a definition.
type ObjectMeta struct {
	// Name is shown as the domain title. Required.
	Name string `json:"name,omitempty" yaml:"name,omitempty" validate:"required"`

	// UID is the libvirt domain UUID. When empty it is derived from the
	// kind and name, so the same definition always maps to the same domain.
	// +optional
	UID string `json:"uid,omitempty" yaml:"uid,omitempty" validate:"omitempty,uuid"`

	// Labels are key/value pairs attached to the definition.
	// +optional
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Annotations are unstructured key/value pairs for external tools.
	// +optional
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// DeepCopy creates a deep copy of ObjectMeta.
func (in *ObjectMeta) DeepCopy() *ObjectMeta {
	if in == nil {
		return nil
	}
	out := new(ObjectMeta)
	*out = *in
	out.Labels = copyStringMap(in.Labels)
	out.Annotations = copyStringMap(in.Annotations)
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
