package device

// Delegate is a host policy hook consulted before a device is considered
// available. A single delegate is usually shared by all devices.
type Delegate interface {
	IsAvailable(d Device) bool
}

// DelegateFunc adapts a function to Delegate.
type DelegateFunc func(d Device) bool

func (f DelegateFunc) IsAvailable(d Device) bool { return f(d) }

// DefaultDelegate allows every device.
var DefaultDelegate Delegate = DelegateFunc(func(Device) bool { return true })
