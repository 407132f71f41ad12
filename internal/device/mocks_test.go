package device

import (
	"errors"
	"sync"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/crucible/internal/hostdev"
)

// fakeDevice records Run and release calls into a shared log.
type fakeDevice struct {
	Base
	name    string
	runErr  error
	relErr  error
	journal *journal
}

func (d *fakeDevice) Kind() Kind                 { return KindDisk }
func (d *fakeDevice) Identity() string           { return d.name }
func (d *fakeDevice) IsAvailable() bool          { return d.allowed(d) }
func (d *fakeDevice) Validate() ValidationErrors { return nil }
func (d *fakeDevice) Render(*Counters) Fragment  { return Fragment{} }

func (d *fakeDevice) Run(RunContext) (Release, error) {
	d.journal.add("run " + d.name)
	if d.runErr != nil {
		return nil, d.runErr
	}
	return func() error {
		d.journal.add("release " + d.name)
		return d.relErr
	}, nil
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

// mockDomainLister is a mock implementation of DomainLister.
type mockDomainLister struct {
	mu sync.Mutex

	domains  []libvirt.Domain // running
	inactive []libvirt.Domain // defined but shut off
	xml      map[string]string
	listErr error
	descErr error

	describeCalls []string
}

func (m *mockDomainLister) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []libvirt.Domain
	if flags&libvirt.ConnectListDomainsInactive != 0 || flags&libvirt.ConnectListDomainsActive == 0 {
		out = append(out, m.inactive...)
	}
	if flags&libvirt.ConnectListDomainsActive != 0 || flags&libvirt.ConnectListDomainsInactive == 0 {
		out = append(out, m.domains...)
	}
	return out, uint32(len(out)), nil
}

func (m *mockDomainLister) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	m.describeCalls = append(m.describeCalls, dom.Name)
	m.mu.Unlock()
	if m.descErr != nil {
		return "", m.descErr
	}
	return m.xml[dom.Name], nil
}

// mockNodeDevices is a mock implementation of NodeDeviceClient.
type mockNodeDevices struct {
	detachErr error

	detachCalls   []string
	reattachCalls []string
}

func (m *mockNodeDevices) NodeDeviceDetachFlags(name string, driverName libvirt.OptString, flags uint32) error {
	m.detachCalls = append(m.detachCalls, name)
	return m.detachErr
}

func (m *mockNodeDevices) NodeDeviceReAttach(name string) error {
	m.reattachCalls = append(m.reattachCalls, name)
	return nil
}

// fakeLinks is a LinkFacts backed by maps.
type fakeLinks struct {
	links      map[string]bool
	defaultIf  string
	setUpCalls []string
}

func (f *fakeLinks) Exists(name string) bool { return f.links[name] }

func (f *fakeLinks) SetUp(name string) error {
	f.setUpCalls = append(f.setUpCalls, name)
	if !f.links[name] {
		return hostdev.ErrNotFound
	}
	return nil
}

func (f *fakeLinks) DefaultInterface() (string, error) {
	if f.defaultIf == "" {
		return "", errors.New("no default route")
	}
	return f.defaultIf, nil
}

// fakeHost implements PCIFacts, USBFacts and GPUFacts from fixed data.
type fakeHost struct {
	pci     map[string]hostdev.PCIDevice
	usb     []hostdev.USBDevice
	gpus    []hostdev.GPU
	render  map[string]string
	nvidia  map[string]string
	devices map[string]bool
}

func (f *fakeHost) PCIDevice(address string) (hostdev.PCIDevice, error) {
	d, ok := f.pci[hostdev.NormalizePCIAddress(address)]
	if !ok {
		return hostdev.PCIDevice{}, hostdev.ErrNotFound
	}
	return d, nil
}

func (f *fakeHost) USBByName(name string) (hostdev.USBDevice, error) {
	for _, d := range f.usb {
		if d.Name() == name {
			return d, nil
		}
	}
	return hostdev.USBDevice{}, hostdev.ErrNotFound
}

func (f *fakeHost) USBByIDs(vendorID, productID string) (hostdev.USBDevice, error) {
	for _, d := range f.usb {
		if d.VendorID == hostdev.NormalizeUSBID(vendorID) && d.ProductID == hostdev.NormalizeUSBID(productID) {
			return d, nil
		}
	}
	return hostdev.USBDevice{}, hostdev.ErrNotFound
}

func (f *fakeHost) GPUs() ([]hostdev.GPU, error) { return f.gpus, nil }

func (f *fakeHost) RenderNode(address string) (string, bool) {
	n, ok := f.render[address]
	return n, ok
}

func (f *fakeHost) NVIDIADeviceNode(address string) (string, bool) {
	n, ok := f.nvidia[address]
	return n, ok
}

func (f *fakeHost) DeviceNodeExists(path string) bool { return f.devices[path] }
