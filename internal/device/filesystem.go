package device

import (
	"fmt"
	"path/filepath"

	"libvirt.org/go/libvirtxml"
)

// Filesystem shares a host directory with a container.
type Filesystem struct {
	Base

	Source string
	Target string
}

func (d *Filesystem) Kind() Kind       { return KindFilesystem }
func (d *Filesystem) Identity() string { return d.Source + ":" + d.Target }

func (d *Filesystem) IsAvailable() bool {
	return d.allowed(d) && pathExists(d.Source)
}

func (d *Filesystem) Validate() ValidationErrors {
	var errs ValidationErrors
	switch {
	case d.Target == "/":
		errs.Add("target", "Target can't be root")
	case !filepath.IsAbs(d.Target):
		errs.Add("target", "Target must be an absolute path")
	}
	switch {
	case d.Source == "/":
		errs.Add("source", "Source can't be root")
	case !filepath.IsAbs(d.Source):
		errs.Add("source", "Source must be an absolute path")
	case !pathExists(d.Source):
		errs.Add("source", fmt.Sprintf("Source %s does not exist", d.Source))
	}
	return errs
}

func (d *Filesystem) Render(*Counters) Fragment {
	var f Fragment
	f.Filesystems = append(f.Filesystems, libvirtxml.DomainFilesystem{
		Source: &libvirtxml.DomainFilesystemSource{Mount: &libvirtxml.DomainFilesystemSourceMount{Dir: d.Source}},
		Target: &libvirtxml.DomainFilesystemTarget{Dir: d.Target},
	})
	return f
}
