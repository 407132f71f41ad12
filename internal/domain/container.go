package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/jbweber/crucible/internal/device"
)

const (
	// LXCPIDDir is where libvirt's LXC driver writes domain pid files.
	LXCPIDDir = "/var/run/libvirt/lxc"

	// IDMappedRootDir holds the id-mapped bind mounts of running containers.
	IDMappedRootDir = "/run/truenas_containers/root"
)

var (
	command = exec.CommandContext
	unmount = unix.Unmount
)

// Container is an LXC guest.
type Container struct {
	cfg     ContainerConfiguration
	devices *device.Manager
	log     logr.Logger

	// IDMappedRootDir defaults to IDMappedRootDir.
	IDMappedRootDir string
	// PIDDir defaults to LXCPIDDir.
	PIDDir string
	// ProcRoot defaults to /proc.
	ProcRoot string
}

// NewContainer returns a container for cfg. Device side effects are logged
// to log.
func NewContainer(cfg ContainerConfiguration, log logr.Logger) *Container {
	return &Container{
		cfg:     cfg,
		devices: device.NewManager(cfg.Devices, cfg.UUID, log),
		log:     log,
	}
}

func (c *Container) Config() *Configuration                   { return &c.cfg.Configuration }
func (c *Container) ContainerConfig() *ContainerConfiguration { return &c.cfg }
func (c *Container) DeviceManager() *device.Manager           { return c.devices }
func (c *Container) Devices() []device.Device                 { return c.devices.Devices() }

// Prepare bind mounts the root with the configured id mapping so files owned
// by mapped ids appear to the container as owned by its own users. Without an
// id mapping the root is used as is.
func (c *Container) Prepare(ctx context.Context) (RuntimeContext, device.Release, error) {
	idmap := c.cfg.IDMap
	if idmap == nil {
		return RuntimeContext{Root: c.cfg.Root}, noRelease, nil
	}

	// libvirt_lxc cannot create it once the root is id mapped.
	if err := os.Mkdir(filepath.Join(c.cfg.Root, ".oldroot"), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return RuntimeContext{}, nil, &device.OperationalError{Op: "Unable to set up idmapped root", Err: err}
	}

	base := c.IDMappedRootDir
	if base == "" {
		base = IDMappedRootDir
	}
	mapped := filepath.Join(base, c.cfg.UUID)
	if err := os.MkdirAll(mapped, 0o755); err != nil {
		return RuntimeContext{}, nil, &device.OperationalError{Op: "Unable to set up idmapped root", Err: err}
	}

	opts := fmt.Sprintf("bind,X-mount.idmap=u:%s g:%s", idmapSpec(idmap.UID), idmapSpec(idmap.GID))
	if err := run(command(ctx, "mount", "-o", opts, c.cfg.Root, mapped)); err != nil {
		if rmErr := os.Remove(mapped); rmErr != nil {
			c.log.Error(rmErr, "Failed to remove idmapped root mount point", "mount", mapped)
		}
		return RuntimeContext{}, nil, &device.OperationalError{Op: "Unable to set up idmapped root", Err: err}
	}
	c.log.V(1).Info("Mounted idmapped root", "root", c.cfg.Root, "mount", mapped)

	return RuntimeContext{Root: mapped}, func() error {
		if err := unmount(mapped, 0); err != nil {
			return &device.OperationalError{Op: "Unable to umount idmapped root", Err: fmt.Errorf("%s: %w", mapped, err)}
		}
		return os.Remove(mapped)
	}, nil
}

func idmapSpec(r IDMapRange) string {
	return fmt.Sprintf("0:%d:%d", r.Target, r.Count)
}

// run runs cmd and folds its exit code and stderr into the error.
func run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return fmt.Errorf("%s returned code %d:\n%s", strings.Join(cmd.Args, " "), exit.ExitCode(),
			strings.TrimSpace(stderr.String()))
	}
	return err
}

// PID returns the pid of the container's init. libvirt records the pid of
// libvirt_lxc, whose first child is init.
func (c *Container) PID() (int, bool) {
	dir := c.PIDDir
	if dir == "" {
		dir = LXCPIDDir
	}
	pid, ok := readPID(filepath.Join(dir, c.cfg.UUID+".pid"))
	if !ok {
		return 0, false
	}

	proc := c.ProcRoot
	if proc == "" {
		proc = "/proc"
	}
	p := strconv.Itoa(pid)
	data, err := os.ReadFile(filepath.Join(proc, p, "task", p, "children"))
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	child, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return child, true
}

func (c *Container) Undefine(u Undefiner, dom libvirt.Domain) error {
	return u.DomainUndefineFlags(dom, 0)
}
