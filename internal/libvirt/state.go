package libvirt

import "github.com/digitalocean/go-libvirt"

// DomainState is the run state libvirt reports for a domain.
type DomainState string

const (
	StateNoState     DomainState = "NOSTATE"
	StateRunning     DomainState = "RUNNING"
	StateBlocked     DomainState = "BLOCKED"
	StatePaused      DomainState = "PAUSED"
	StateShutdown    DomainState = "SHUTDOWN"
	StateShutoff     DomainState = "SHUTOFF"
	StateCrashed     DomainState = "CRASHED"
	StatePMSuspended DomainState = "PMSUSPENDED"
	StateUnknown     DomainState = "UNKNOWN"
)

// Stopped reports whether the domain is no longer running guest code.
func (s DomainState) Stopped() bool {
	return s == StateShutdown || s == StateShutoff || s == StateCrashed
}

// StateFromLibvirt maps the state returned by DomainGetState.
func StateFromLibvirt(state int32) DomainState {
	switch libvirt.DomainState(state) {
	case libvirt.DomainNostate:
		return StateNoState
	case libvirt.DomainRunning:
		return StateRunning
	case libvirt.DomainBlocked:
		return StateBlocked
	case libvirt.DomainPaused:
		return StatePaused
	case libvirt.DomainShutdown:
		return StateShutdown
	case libvirt.DomainShutoff:
		return StateShutoff
	case libvirt.DomainCrashed:
		return StateCrashed
	case libvirt.DomainPmsuspended:
		return StatePMSuspended
	}
	return StateUnknown
}

// Event is a domain lifecycle event type.
type Event string

const (
	EventDefined     Event = "DEFINED"
	EventUndefined   Event = "UNDEFINED"
	EventStarted     Event = "STARTED"
	EventSuspended   Event = "SUSPENDED"
	EventResumed     Event = "RESUMED"
	EventStopped     Event = "STOPPED"
	EventShutdown    Event = "SHUTDOWN"
	EventPMSuspended Event = "PMSUSPENDED"
	EventCrashed     Event = "CRASHED"
	EventUnknown     Event = "UNKNOWN"
)

// Stopped reports whether the event ends a domain's run.
func (e Event) Stopped() bool {
	return e == EventStopped || e == EventShutdown || e == EventUndefined
}

// EventFromLibvirt maps the event field of a lifecycle message.
func EventFromLibvirt(event int32) Event {
	switch libvirt.DomainEventType(event) {
	case libvirt.DomainEventDefined:
		return EventDefined
	case libvirt.DomainEventUndefined:
		return EventUndefined
	case libvirt.DomainEventStarted:
		return EventStarted
	case libvirt.DomainEventSuspended:
		return EventSuspended
	case libvirt.DomainEventResumed:
		return EventResumed
	case libvirt.DomainEventStopped:
		return EventStopped
	case libvirt.DomainEventShutdown:
		return EventShutdown
	case libvirt.DomainEventPmsuspended:
		return EventPMSuspended
	case libvirt.DomainEventCrashed:
		return EventCrashed
	}
	return EventUnknown
}

// DomainEvent is a lifecycle event for the domain named UUID.
type DomainEvent struct {
	UUID  string
	Event Event
}
