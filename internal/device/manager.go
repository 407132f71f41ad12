package device

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
)

// Manager owns the ordered devices of one domain.
type Manager struct {
	devices    []Device
	domainUUID string
	log        logr.Logger
}

// NewManager returns a manager for the devices of the domain with the given
// UUID.
func NewManager(devices []Device, domainUUID string, log logr.Logger) *Manager {
	return &Manager{devices: devices, domainUUID: domainUUID, log: log}
}

// Devices returns the devices in configuration order.
func (m *Manager) Devices() []Device {
	return m.devices
}

type acquired struct {
	device  Device
	release Release
}

// Start runs every device's side effect in configuration order. If a device
// fails, the devices already started are released in reverse order and the
// device's error is returned. On success the returned Release tears every
// device down in reverse order; it is safe to call more than once but only
// the first call does anything.
func (m *Manager) Start(rc RunContext) (Release, error) {
	if rc.DomainUUID == "" {
		rc.DomainUUID = m.domainUUID
	}
	if rc.Log.GetSink() == nil {
		rc.Log = m.log
	}

	started := make([]acquired, 0, len(m.devices))
	for _, d := range m.devices {
		release, err := d.Run(rc)
		if err != nil {
			m.log.Error(err, "Failed to start device", "device", d.Identity())
			for i := len(started) - 1; i >= 0; i-- {
				if rerr := started[i].release(); rerr != nil {
					m.log.Error(rerr, "Failed to clean up device during startup rollback",
						"device", started[i].device.Identity())
				}
			}
			return nil, fmt.Errorf("failed to start device %s: %w", d.Identity(), err)
		}
		if release == nil {
			release = noRelease
		}
		started = append(started, acquired{device: d, release: release})
		m.log.V(1).Info("Started device", "device", d.Identity())
	}

	done := false
	return func() error {
		if done {
			return nil
		}
		done = true

		var result *multierror.Error
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].release(); err != nil {
				m.log.Error(err, "Failed to clean up device", "device", started[i].device.Identity())
				result = multierror.Append(result, fmt.Errorf("device %s: %w", started[i].device.Identity(), err))
			}
		}
		return result.ErrorOrNil()
	}, nil
}
