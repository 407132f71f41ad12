package libvirt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EventCallback receives lifecycle events. Callbacks run on the event loop's
// goroutine one at a time.
type EventCallback func(DomainEvent)

type lifecycleSource func(ctx context.Context) (<-chan libvirt.DomainEventLifecycleMsg, error)

// EventLoop subscribes to lifecycle events on a connection and dispatches
// them to registered callbacks. The subscription is renewed when the
// connection drops.
type EventLoop struct {
	subscribe lifecycleSource
	log       logr.Logger
	limiter   *rate.Limiter

	mu        sync.RWMutex
	callbacks []EventCallback
}

// NewEventLoop returns an event loop for conn. Resubscribing is limited to
// once per second.
func NewEventLoop(conn *Connection, log logr.Logger) *EventLoop {
	return newEventLoop(func(ctx context.Context) (<-chan libvirt.DomainEventLifecycleMsg, error) {
		l, err := conn.Libvirt(ctx)
		if err != nil {
			return nil, err
		}
		return l.LifecycleEvents(ctx)
	}, log.WithValues("uri", conn.URI()), time.Second)
}

func newEventLoop(subscribe lifecycleSource, log logr.Logger, every time.Duration) *EventLoop {
	return &EventLoop{
		subscribe: subscribe,
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(every), 1),
	}
}

// Register adds a callback.
func (e *EventLoop) Register(cb EventCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks = append(e.callbacks, cb)
}

// Run delivers events until ctx is done.
func (e *EventLoop) Run(ctx context.Context) error {
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil
		}

		events, err := e.subscribe(ctx)
		if err != nil {
			e.log.Error(err, "Failed to subscribe to lifecycle events")
			continue
		}
		e.log.V(1).Info("Subscribed to lifecycle events")

		for msg := range events {
			e.Dispatch(DomainEvent{UUID: uuid.UUID(msg.Dom.UUID).String(), Event: EventFromLibvirt(msg.Event)})
		}

		if ctx.Err() != nil {
			return nil
		}
		e.log.Info("Lifecycle event stream closed, resubscribing")
	}
}

// Dispatch hands ev to every callback. A panicking callback is logged and
// does not stop the others.
func (e *EventLoop) Dispatch(ev DomainEvent) {
	e.mu.RLock()
	callbacks := append([]EventCallback(nil), e.callbacks...)
	e.mu.RUnlock()

	for _, cb := range callbacks {
		e.call(cb, ev)
	}
}

func (e *EventLoop) call(cb EventCallback, ev DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(fmt.Errorf("panic: %v", r), "Unhandled panic in domain event callback",
				"uuid", ev.UUID, "event", string(ev.Event))
		}
	}()
	cb(ev)
}
