package libvirt

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultServiceUnit is the systemd unit running libvirtd.
const DefaultServiceUnit = "libvirtd"

// ServiceDelegate makes sure the daemon is running before a connection is
// opened.
type ServiceDelegate interface {
	EnsureStarted(ctx context.Context) error
}

var systemctl = func(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "systemctl", args...)
}

// SystemdService starts a systemd unit on demand.
type SystemdService struct {
	Unit string
}

func (s SystemdService) unit() string {
	if s.Unit == "" {
		return DefaultServiceUnit
	}
	return s.Unit
}

// EnsureStarted starts the unit unless it is already active.
func (s SystemdService) EnsureStarted(ctx context.Context) error {
	if err := systemctl(ctx, "is-active", "--quiet", s.unit()).Run(); err == nil {
		return nil
	}

	out, err := systemctl(ctx, "start", s.unit()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to start %s: %w: %s", s.unit(), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// StartedService assumes the daemon is managed elsewhere.
type StartedService struct{}

func (StartedService) EnsureStarted(context.Context) error { return nil }
