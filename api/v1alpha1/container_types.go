package v1alpha1

// Container is an LXC system container.
//
// +kubebuilder:object:root=true
// +kubebuilder:resource:shortName=ct
type Container struct {
	TypeMeta `json:",inline" yaml:",inline"`

	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec ContainerSpec `json:"spec" yaml:"spec"`
}

// ContainerSpec defines an LXC container.
//
// +k8s:deepcopy-gen=true
type ContainerSpec struct {
	DomainSpec `json:",inline" yaml:",inline"`

	// Root is the host directory holding the container's root filesystem.
	Root string `json:"root" yaml:"root" validate:"required,startswith=/"`

	// Init is the command line of the container's first process.
	Init string `json:"init" yaml:"init" validate:"required"`

	// +optional
	InitDir string `json:"initDir,omitempty" yaml:"initDir,omitempty"`
	// +optional
	InitEnv map[string]string `json:"initEnv,omitempty" yaml:"initEnv,omitempty"`
	// +optional
	InitUser string `json:"initUser,omitempty" yaml:"initUser,omitempty"`
	// +optional
	InitGroup string `json:"initGroup,omitempty" yaml:"initGroup,omitempty"`

	// IDMap maps container uid/gid 0 onto a host range. Without it the
	// container runs with the identity mapping.
	// +optional
	IDMap *IDMapSpec `json:"idmap,omitempty" yaml:"idmap,omitempty"`

	// +optional
	Capabilities CapabilitiesSpec `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// IDMapSpec is the uid and gid mapping of a container.
type IDMapSpec struct {
	UID IDMapRange `json:"uid" yaml:"uid"`
	GID IDMapRange `json:"gid" yaml:"gid"`
}

// IDMapRange maps Count ids starting at container id 0 to host id Target.
type IDMapRange struct {
	Target uint `json:"target" yaml:"target"`
	Count  uint `json:"count" yaml:"count" validate:"gt=0"`
}

// CapabilitiesSpec adjusts the Linux capabilities of the container.
type CapabilitiesSpec struct {
	// Policy is default, allow or deny.
	// +optional
	Policy string `json:"policy,omitempty" yaml:"policy,omitempty" validate:"omitempty,oneof=default allow deny"`

	// State turns individual capabilities on or off, keyed by lowercase
	// capability name without the CAP_ prefix (e.g. sys_admin).
	// +optional
	State map[string]bool `json:"state,omitempty" yaml:"state,omitempty"`
}

// DeepCopy creates a deep copy of Container.
func (in *Container) DeepCopy() *Container {
	if in == nil {
		return nil
	}
	out := new(Container)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of ContainerSpec.
func (in *ContainerSpec) DeepCopy() *ContainerSpec {
	if in == nil {
		return nil
	}
	out := new(ContainerSpec)
	*out = *in
	out.DomainSpec = *in.DomainSpec.DeepCopy()
	out.InitEnv = copyStringMap(in.InitEnv)
	if in.IDMap != nil {
		m := *in.IDMap
		out.IDMap = &m
	}
	if in.Capabilities.State != nil {
		out.Capabilities.State = make(map[string]bool, len(in.Capabilities.State))
		for k, v := range in.Capabilities.State {
			out.Capabilities.State[k] = v
		}
	}
	return out
}
