package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
)

// DefaultGracePeriod is how long Delete waits after force-stopping a domain
// before undefining it.
const DefaultGracePeriod = 7 * time.Second

// Options configures NewManager.
type Options struct {
	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration

	// Registerer receives the manager's metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// Manager runs lifecycle operations for the domains of one libvirt driver.
type Manager struct {
	client      func(ctx context.Context) (libvirtClient, error)
	log         logr.Logger
	metrics     *metrics
	gracePeriod time.Duration
	sleep       func(time.Duration)

	mu      sync.Mutex
	started map[string]*StartedDomain
}

// NewManager returns a manager issuing calls on conn.
func NewManager(conn *crlibvirt.Connection, log logr.Logger, opts Options) *Manager {
	return newManager(func(ctx context.Context) (libvirtClient, error) {
		l, err := conn.Libvirt(ctx)
		if err != nil {
			return nil, err
		}
		return l, nil
	}, log, opts)
}

func newManager(client func(ctx context.Context) (libvirtClient, error), log logr.Logger, opts Options) *Manager {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Manager{
		client:      client,
		log:         log,
		metrics:     newMetrics(opts.Registerer),
		gracePeriod: opts.GracePeriod,
		sleep:       time.Sleep,
		started:     make(map[string]*StartedDomain),
	}
}

// Start validates, prepares, defines and creates d. Host resources acquired
// along the way are released if any later step fails.
func (m *Manager) Start(ctx context.Context, d domain.Domain) (err error) {
	defer m.metrics.observe("start", &err)
	cfg := d.Config()

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sd, ok := m.started[cfg.UUID]; ok {
		state, err := m.currentState(lv, cfg)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if err == nil && !state.Stopped() {
			return errorf("Domain '%s' is already started (%s).", cfg.Name, state)
		}
		m.log.Info("Cleaning up stale started domain", "uuid", cfg.UUID, "name", cfg.Name)
		m.forget(cfg.UUID)
		m.release(sd)
	}

	m.log.Info("Starting domain", "uuid", cfg.UUID, "name", cfg.Name)

	sc := device.StartContext{Domains: lv, DomainUUID: cfg.UUID, Log: m.log}
	if errs := Validate(d.Devices(), sc); len(errs) > 0 {
		m.metrics.validationErrors.Add(float64(len(errs)))
		return errorf("Cannot start domain '%s':\n%s", cfg.Name, errs.Error())
	}

	rc := device.RunContext{NodeDevices: lv, DomainUUID: cfg.UUID, Log: m.log}
	sd, err := startDomain(ctx, d, rc, m.log)
	if err != nil {
		return fmt.Errorf("failed to start domain '%s': %w", cfg.Name, err)
	}

	if err := m.create(lv, sd); err != nil {
		m.release(sd)
		return err
	}

	m.started[cfg.UUID] = sd
	m.metrics.started.Set(float64(len(m.started)))
	m.log.Info("Started domain", "uuid", cfg.UUID, "name", cfg.Name)
	return nil
}

func (m *Manager) create(lv libvirtClient, sd *StartedDomain) error {
	cfg := sd.Domain.Config()

	desc, err := sd.Domain.Description(sd.Runtime)
	if err != nil {
		return fmt.Errorf("failed to generate domain XML: %w", err)
	}
	xml, err := domain.Marshal(desc)
	if err != nil {
		return err
	}

	if _, err := lv.DomainDefineXML(xml); err != nil {
		return fmt.Errorf("failed to define domain '%s': %w", cfg.Name, err)
	}

	dom, err := m.lookup(lv, cfg)
	if err != nil {
		return err
	}

	if err := lv.DomainCreate(dom); err != nil {
		return fmt.Errorf("failed to create domain '%s': %w", cfg.Name, err)
	}
	return nil
}

// Shutdown asks the guest to shut down once per second until it leaves the
// running state or timeout runs out. A zero timeout uses the domain's
// configured shutdown timeout.
func (m *Manager) Shutdown(ctx context.Context, d domain.Domain, timeout time.Duration) (err error) {
	defer m.metrics.observe("shutdown", &err)
	cfg := d.Config()
	if timeout == 0 {
		timeout = cfg.ShutdownTimeout
	}

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}
	dom, err := m.activeDomain(lv, cfg)
	if err != nil {
		return err
	}

	m.log.Info("Shutting down domain", "uuid", cfg.UUID, "name", cfg.Name, "timeout", timeout.String())
	for remaining := timeout; remaining > 0; remaining -= time.Second {
		state, err := m.state(lv, dom)
		if err != nil || state != crlibvirt.StateRunning {
			break
		}
		// Some guests drop the request while booting, so it is repeated.
		if err := lv.DomainShutdown(dom); err != nil {
			m.log.V(1).Info("Shutdown request failed", "uuid", cfg.UUID, "error", err.Error())
		}
		m.sleep(time.Second)
	}
	return nil
}

// Destroy force-stops d. A domain that turns out to be shut off already is
// not an error.
func (m *Manager) Destroy(ctx context.Context, d domain.Domain) (err error) {
	defer m.metrics.observe("destroy", &err)
	cfg := d.Config()

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}
	dom, err := m.activeDomain(lv, cfg)
	if err != nil {
		return err
	}

	m.log.Info("Destroying domain", "uuid", cfg.UUID, "name", cfg.Name)
	return m.destroy(lv, cfg, dom)
}

func (m *Manager) destroy(lv libvirtClient, cfg *domain.Configuration, dom libvirt.Domain) error {
	err := lv.DomainDestroy(dom)
	if err == nil {
		return nil
	}
	if state, serr := m.state(lv, dom); serr == nil && state == crlibvirt.StateShutoff {
		m.log.V(1).Info("Domain already shut off", "uuid", cfg.UUID, "error", err.Error())
		return nil
	}
	return fmt.Errorf("failed to destroy domain '%s': %w", cfg.Name, err)
}

// Suspend pauses an active domain.
func (m *Manager) Suspend(ctx context.Context, d domain.Domain) (err error) {
	defer m.metrics.observe("suspend", &err)
	cfg := d.Config()

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}
	dom, err := m.activeDomain(lv, cfg)
	if err != nil {
		return err
	}

	if err := lv.DomainSuspend(dom); err != nil {
		return fmt.Errorf("failed to suspend domain '%s': %w", cfg.Name, err)
	}
	return nil
}

// Resume unpauses a suspended domain.
func (m *Manager) Resume(ctx context.Context, d domain.Domain) (err error) {
	defer m.metrics.observe("resume", &err)
	cfg := d.Config()

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}
	dom, err := m.lookup(lv, cfg)
	if err != nil {
		return err
	}

	state, err := m.state(lv, dom)
	if err != nil {
		return err
	}
	if state != crlibvirt.StatePaused {
		return errorf("Domain '%s' is not suspended", cfg.Name)
	}

	if err := lv.DomainResume(dom); err != nil {
		return fmt.Errorf("failed to resume domain '%s': %w", cfg.Name, err)
	}
	return nil
}

// Delete undefines d, force-stopping it first when it is running or paused.
func (m *Manager) Delete(ctx context.Context, d domain.Domain) (err error) {
	defer m.metrics.observe("delete", &err)
	cfg := d.Config()

	lv, err := m.client(ctx)
	if err != nil {
		return err
	}
	dom, err := m.lookup(lv, cfg)
	if err != nil {
		return err
	}

	state, err := m.state(lv, dom)
	if err != nil {
		return err
	}
	if state == crlibvirt.StateRunning || state == crlibvirt.StatePaused {
		m.log.Info("Destroying domain before delete", "uuid", cfg.UUID, "name", cfg.Name)
		if err := m.destroy(lv, cfg, dom); err != nil {
			return err
		}
		// libvirt hooks may still be cleaning up after the domain exits.
		m.sleep(m.gracePeriod)
	}

	m.log.Info("Undefining domain", "uuid", cfg.UUID, "name", cfg.Name)
	if err := d.Undefine(lv, dom); err != nil {
		return fmt.Errorf("failed to undefine domain '%s': %w", cfg.Name, err)
	}
	return nil
}

// HandleEvent releases the resources of a started domain that stopped.
// Register it on the event loop of the same connection.
func (m *Manager) HandleEvent(ev crlibvirt.DomainEvent) {
	if !ev.Event.Stopped() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sd, ok := m.started[ev.UUID]
	if !ok {
		return
	}
	m.log.Info("Domain stopped, releasing resources", "uuid", ev.UUID, "event", string(ev.Event))
	m.forget(ev.UUID)
	m.release(sd)
}

// Started reports whether this manager holds resources for the domain.
func (m *Manager) Started(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.started[id]
	return ok
}

// List returns the uuids of the started domains in sorted order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	uuids := make([]string, 0, len(m.started))
	for id := range m.started {
		uuids = append(uuids, id)
	}
	sort.Strings(uuids)
	return uuids
}

// Domains returns the started domains ordered by uuid.
func (m *Manager) Domains() []*StartedDomain {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := make([]*StartedDomain, 0, len(m.started))
	for _, s := range m.started {
		started = append(started, s)
	}
	sort.Slice(started, func(i, j int) bool {
		return started[i].Domain.Config().UUID < started[j].Domain.Config().UUID
	})
	return started
}

// forget must be called with m.mu held.
func (m *Manager) forget(id string) {
	delete(m.started, id)
	m.metrics.started.Set(float64(len(m.started)))
}

func (m *Manager) release(sd *StartedDomain) {
	if err := sd.Release(); err != nil {
		m.log.Error(err, "Failed to release domain resources", "uuid", sd.Domain.Config().UUID)
	}
}

func (m *Manager) lookup(lv libvirtClient, cfg *domain.Configuration) (libvirt.Domain, error) {
	id, err := uuid.Parse(cfg.UUID)
	if err != nil {
		return libvirt.Domain{}, &Error{Message: fmt.Sprintf("Domain '%s' has an invalid uuid", cfg.Name), Err: err}
	}

	dom, err := lv.DomainLookupByUUID(libvirt.UUID(id))
	if err != nil {
		if crlibvirt.IsNoDomain(err) {
			return libvirt.Domain{}, &NotFoundError{Name: cfg.Name}
		}
		return libvirt.Domain{}, fmt.Errorf("failed to look up domain '%s': %w", cfg.Name, err)
	}
	return dom, nil
}

func (m *Manager) activeDomain(lv libvirtClient, cfg *domain.Configuration) (libvirt.Domain, error) {
	dom, err := m.lookup(lv, cfg)
	if err != nil {
		return dom, err
	}
	active, err := lv.DomainIsActive(dom)
	if err != nil {
		return dom, fmt.Errorf("failed to check domain '%s': %w", cfg.Name, err)
	}
	if active == 0 {
		return dom, errorf("Domain '%s' is not active", cfg.Name)
	}
	return dom, nil
}

func (m *Manager) state(lv libvirtClient, dom libvirt.Domain) (crlibvirt.DomainState, error) {
	state, _, err := lv.DomainGetState(dom, 0)
	if err != nil {
		return crlibvirt.StateUnknown, fmt.Errorf("failed to get domain state: %w", err)
	}
	return crlibvirt.StateFromLibvirt(state), nil
}

func (m *Manager) currentState(lv libvirtClient, cfg *domain.Configuration) (crlibvirt.DomainState, error) {
	dom, err := m.lookup(lv, cfg)
	if err != nil {
		return crlibvirt.StateUnknown, err
	}
	return m.state(lv, dom)
}
