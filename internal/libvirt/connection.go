package libvirt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
)

// session is what Connection needs from an open client.
//
// In production, this is satisfied by *Client.
type session interface {
	Libvirt() *libvirt.Libvirt
	Ping() error
	Close() error
}

// Connection keeps one live client for a driver URI, reopening it when the
// daemon goes away. Repeated failures to reopen trip a circuit breaker so
// callers fail fast while libvirtd is down.
type Connection struct {
	uri     string
	service ServiceDelegate
	log     logr.Logger

	dial    func(ctx context.Context) (session, error)
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	current session
}

// ConnectionConfig configures NewConnection.
type ConnectionConfig struct {
	SocketPath string
	URI        string
	Timeout    time.Duration

	// Service defaults to StartedService.
	Service ServiceDelegate

	// BreakerTimeout is how long reconnects are refused after three
	// consecutive failures. Defaults to 10s.
	BreakerTimeout time.Duration
}

// NewConnection returns a connection that dials lazily on first use.
func NewConnection(cfg ConnectionConfig, log logr.Logger) *Connection {
	return newConnection(cfg, log, func(ctx context.Context) (session, error) {
		c, err := ConnectWithContext(ctx, cfg.SocketPath, cfg.URI, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

func newConnection(cfg ConnectionConfig, log logr.Logger, dial func(ctx context.Context) (session, error)) *Connection {
	if cfg.URI == "" {
		cfg.URI = URIVMs
	}
	if cfg.Service == nil {
		cfg.Service = StartedService{}
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 10 * time.Second
	}

	c := &Connection{
		uri:     cfg.URI,
		service: cfg.Service,
		log:     log.WithValues("uri", cfg.URI),
		dial:    dial,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.URI,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Info("libvirt connection breaker changed state", "from", from.String(), "to", to.String())
		},
	})
	return c
}

// URI returns the driver URI.
func (c *Connection) URI() string {
	return c.uri
}

// Libvirt returns a live client, reconnecting if the previous one died.
func (c *Connection) Libvirt(ctx context.Context) (*libvirt.Libvirt, error) {
	s, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Libvirt(), nil
}

func (c *Connection) session(ctx context.Context) (session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		err := c.current.Ping()
		if err == nil {
			return c.current, nil
		}
		c.log.Info("libvirt connection lost, reconnecting", "reason", err.Error())
		if cerr := c.current.Close(); cerr != nil {
			c.log.V(1).Info("Failed to close dead connection", "error", cerr.Error())
		}
		c.current = nil
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		if err := c.service.EnsureStarted(ctx); err != nil {
			return nil, fmt.Errorf("failed to start libvirt service: %w", err)
		}
		return c.dial(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open libvirt connection: %w", err)
	}

	c.current = v.(session)
	c.log.V(1).Info("Opened libvirt connection")
	return c.current, nil
}

// Close closes the current client, if any.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}
