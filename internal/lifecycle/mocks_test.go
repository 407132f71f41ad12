package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/crucible/internal/device"
	"github.com/jbweber/crucible/internal/domain"
)

const (
	testUUID = "4d3c1b2a-0000-4000-8000-000000000001"

	domainStateRunning = int32(libvirt.DomainRunning)
	domainStatePaused  = int32(libvirt.DomainPaused)
	domainStateShutoff = int32(libvirt.DomainShutoff)
)

// mockLibvirtClient is a mock implementation of the libvirtClient interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	domainLookupByUUIDFunc  func(id libvirt.UUID) (libvirt.Domain, error)
	domainDefineXMLFunc     func(xml string) (libvirt.Domain, error)
	domainCreateFunc        func(dom libvirt.Domain) error
	domainGetStateFunc      func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainIsActiveFunc      func(dom libvirt.Domain) (int32, error)
	domainShutdownFunc      func(dom libvirt.Domain) error
	domainDestroyFunc       func(dom libvirt.Domain) error
	domainSuspendFunc       func(dom libvirt.Domain) error
	domainResumeFunc        func(dom libvirt.Domain) error
	domainUndefineFlagsFunc func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	listAllDomainsFunc      func() ([]libvirt.Domain, error)
	domainGetXMLDescFunc    func(dom libvirt.Domain) (string, error)

	// Call tracking
	domainLookupByUUIDCalls  []string
	domainDefineXMLCalls     []string
	domainCreateCalls        []libvirt.Domain
	domainShutdownCalls      []libvirt.Domain
	domainDestroyCalls       []libvirt.Domain
	domainSuspendCalls       []libvirt.Domain
	domainResumeCalls        []libvirt.Domain
	domainUndefineFlagsCalls []libvirt.DomainUndefineFlagsValues
	listAllDomainsCalls      int
}

// newMockLibvirtClient creates a mock where every domain exists and is running.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	m.domainLookupByUUIDFunc = func(id libvirt.UUID) (libvirt.Domain, error) {
		return libvirt.Domain{Name: uuid.UUID(id).String(), UUID: id}, nil
	}
	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: testUUID}, nil
	}
	m.domainCreateFunc = func(dom libvirt.Domain) error { return nil }
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return domainStateRunning, 0, nil
	}
	m.domainIsActiveFunc = func(dom libvirt.Domain) (int32, error) { return 1, nil }
	m.domainShutdownFunc = func(dom libvirt.Domain) error { return nil }
	m.domainDestroyFunc = func(dom libvirt.Domain) error { return nil }
	m.domainSuspendFunc = func(dom libvirt.Domain) error { return nil }
	m.domainResumeFunc = func(dom libvirt.Domain) error { return nil }
	m.domainUndefineFlagsFunc = func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
		return nil
	}

	return m
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listAllDomainsCalls++
	if m.listAllDomainsFunc == nil {
		return nil, 0, nil
	}
	doms, err := m.listAllDomainsFunc()
	return doms, uint32(len(doms)), err
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainGetXMLDescFunc == nil {
		return "", fmt.Errorf("not implemented")
	}
	return m.domainGetXMLDescFunc(dom)
}

func (m *mockLibvirtClient) NodeDeviceDetachFlags(name string, driverName libvirt.OptString, flags uint32) error {
	return nil
}

func (m *mockLibvirtClient) NodeDeviceReAttach(name string) error {
	return nil
}

func (m *mockLibvirtClient) DomainLookupByUUID(id libvirt.UUID) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByUUIDCalls = append(m.domainLookupByUUIDCalls, uuid.UUID(id).String())
	return m.domainLookupByUUIDFunc(id)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	return m.domainCreateFunc(dom)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainIsActive(dom libvirt.Domain) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainIsActiveFunc(dom)
}

func (m *mockLibvirtClient) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainShutdownCalls = append(m.domainShutdownCalls, dom)
	return m.domainShutdownFunc(dom)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	return m.domainDestroyFunc(dom)
}

func (m *mockLibvirtClient) DomainSuspend(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSuspendCalls = append(m.domainSuspendCalls, dom)
	return m.domainSuspendFunc(dom)
}

func (m *mockLibvirtClient) DomainResume(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainResumeCalls = append(m.domainResumeCalls, dom)
	return m.domainResumeFunc(dom)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineFlagsCalls = append(m.domainUndefineFlagsCalls, flags)
	return m.domainUndefineFlagsFunc(dom, flags)
}

// journal records side effects in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return fmt.Sprint(j.entries)
}

// fakeDevice is a device whose availability and side effects are scripted.
type fakeDevice struct {
	device.Base
	id          string
	unavailable bool
	startErrs   device.ValidationErrors
	runErr      error
	journal     *journal
}

func (d *fakeDevice) Kind() device.Kind                       { return device.KindDisk }
func (d *fakeDevice) Identity() string                        { return d.id }
func (d *fakeDevice) IsAvailable() bool                       { return !d.unavailable }
func (d *fakeDevice) Validate() device.ValidationErrors       { return nil }
func (d *fakeDevice) Render(*device.Counters) device.Fragment { return device.Fragment{} }

func (d *fakeDevice) ValidateStart(device.StartContext) device.ValidationErrors {
	return d.startErrs
}

func (d *fakeDevice) Run(device.RunContext) (device.Release, error) {
	d.journal.add("run " + d.id)
	if d.runErr != nil {
		return nil, d.runErr
	}
	return func() error {
		d.journal.add("release " + d.id)
		return nil
	}, nil
}

// fakeDomain is a domain whose preparation and description are scripted.
type fakeDomain struct {
	cfg        domain.Configuration
	devices    *device.Manager
	prepareErr error
	descErr    error
	journal    *journal
}

func newFakeDomain(j *journal, devices ...device.Device) *fakeDomain {
	return &fakeDomain{
		cfg: domain.Configuration{
			UUID:            testUUID,
			Name:            "test",
			ShutdownTimeout: 90 * time.Second,
			Devices:         devices,
		},
		devices: device.NewManager(devices, testUUID, logr.Discard()),
		journal: j,
	}
}

func (f *fakeDomain) Config() *domain.Configuration  { return &f.cfg }
func (f *fakeDomain) DeviceManager() *device.Manager { return f.devices }
func (f *fakeDomain) Devices() []device.Device       { return f.devices.Devices() }
func (f *fakeDomain) PID() (int, bool)               { return 0, false }

func (f *fakeDomain) Prepare(context.Context) (domain.RuntimeContext, device.Release, error) {
	f.journal.add("prepare")
	if f.prepareErr != nil {
		return domain.RuntimeContext{}, nil, f.prepareErr
	}
	return domain.RuntimeContext{Root: "/prepared"}, func() error {
		f.journal.add("unprepare")
		return nil
	}, nil
}

func (f *fakeDomain) Description(rc domain.RuntimeContext) (*libvirtxml.Domain, error) {
	f.journal.add("describe " + rc.Root)
	if f.descErr != nil {
		return nil, f.descErr
	}
	return &libvirtxml.Domain{Type: "kvm", Name: f.cfg.UUID, UUID: f.cfg.UUID}, nil
}

func (f *fakeDomain) Undefine(u domain.Undefiner, dom libvirt.Domain) error {
	return u.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram)
}

// newTestManager returns a manager on lv that records sleeps instead of
// sleeping.
func newTestManager(lv *mockLibvirtClient) (*Manager, *[]time.Duration) {
	m := newManager(func(context.Context) (libvirtClient, error) { return lv, nil }, logr.Discard(), Options{})
	var sleeps []time.Duration
	m.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return m, &sleeps
}
