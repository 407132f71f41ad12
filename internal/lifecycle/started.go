package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

// StartedDomain binds a domain to the host resources acquired for it.
type StartedDomain struct {
	Domain    domain.Domain
	Runtime   domain.RuntimeContext
	StartedAt time.Time

	releaseDevices device.Release
	releaseRoot    device.Release
	log            logr.Logger
}

// startDomain runs the device side effects and then prepares the domain's
// host resources. If preparing fails the devices are released again.
func startDomain(ctx context.Context, d domain.Domain, rc device.RunContext, log logr.Logger) (*StartedDomain, error) {
	releaseDevices, err := d.DeviceManager().Start(rc)
	if err != nil {
		return nil, err
	}

	runtime, releaseRoot, err := d.Prepare(ctx)
	if err != nil {
		if rerr := releaseDevices(); rerr != nil {
			log.Error(rerr, "Failed to release devices after prepare failure", "uuid", d.Config().UUID)
		}
		return nil, err
	}

	return &StartedDomain{
		Domain:         d,
		Runtime:        runtime,
		StartedAt:      time.Now(),
		releaseDevices: releaseDevices,
		releaseRoot:    releaseRoot,
		log:            log,
	}, nil
}

// Release undoes the domain preparation and then the device side effects.
// Both are attempted even if the first fails.
func (s *StartedDomain) Release() error {
	var result *multierror.Error
	if s.releaseRoot != nil {
		if err := s.releaseRoot(); err != nil {
			result = multierror.Append(result, fmt.Errorf("release runtime: %w", err))
		}
	}
	if s.releaseDevices != nil {
		if err := s.releaseDevices(); err != nil {
			result = multierror.Append(result, fmt.Errorf("release devices: %w", err))
		}
	}
	return result.ErrorOrNil()
}
