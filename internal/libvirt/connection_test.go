package libvirt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
)

type fakeSession struct {
	pingErr error
	closed  int
}

func (f *fakeSession) Libvirt() *libvirt.Libvirt { return nil }
func (f *fakeSession) Ping() error               { return f.pingErr }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

type fakeService struct {
	err   error
	calls int
}

func (f *fakeService) EnsureStarted(context.Context) error {
	f.calls++
	return f.err
}

type fakeDialer struct {
	sessions []*fakeSession
	err      error
	calls    int
}

func (f *fakeDialer) dial(context.Context) (session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func TestConnection_ReusesLiveSession(t *testing.T) {
	d := &fakeDialer{}
	svc := &fakeService{}
	c := newConnection(ConnectionConfig{Service: svc}, logr.Discard(), d.dial)

	for i := 0; i < 3; i++ {
		if _, err := c.Libvirt(context.Background()); err != nil {
			t.Fatalf("Libvirt() call %d failed: %v", i, err)
		}
	}

	if d.calls != 1 {
		t.Errorf("dial called %d times, want 1", d.calls)
	}
	if svc.calls != 1 {
		t.Errorf("EnsureStarted called %d times, want 1", svc.calls)
	}
	if c.URI() != URIVMs {
		t.Errorf("URI() = %q, want %q", c.URI(), URIVMs)
	}
}

func TestConnection_ReconnectsDeadSession(t *testing.T) {
	d := &fakeDialer{}
	c := newConnection(ConnectionConfig{URI: URIContainers}, logr.Discard(), d.dial)

	if _, err := c.Libvirt(context.Background()); err != nil {
		t.Fatalf("Libvirt() failed: %v", err)
	}
	d.sessions[0].pingErr = errors.New("connection reset")

	if _, err := c.Libvirt(context.Background()); err != nil {
		t.Fatalf("Libvirt() after drop failed: %v", err)
	}

	if d.calls != 2 {
		t.Errorf("dial called %d times, want 2", d.calls)
	}
	if d.sessions[0].closed != 1 {
		t.Errorf("dead session closed %d times, want 1", d.sessions[0].closed)
	}
}

func TestConnection_ServiceFailure(t *testing.T) {
	d := &fakeDialer{}
	svc := &fakeService{err: errors.New("unit not found")}
	c := newConnection(ConnectionConfig{Service: svc}, logr.Discard(), d.dial)

	_, err := c.Libvirt(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to start libvirt service") {
		t.Errorf("error = %q, want service failure", err)
	}
	if d.calls != 0 {
		t.Errorf("dial called %d times, want 0", d.calls)
	}
}

func TestConnection_BreakerOpens(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	c := newConnection(ConnectionConfig{BreakerTimeout: time.Hour}, logr.Discard(), d.dial)

	for i := 0; i < 3; i++ {
		if _, err := c.Libvirt(context.Background()); err == nil {
			t.Fatalf("call %d: expected error, got nil", i)
		}
	}

	_, err := c.Libvirt(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want open breaker", err)
	}
	if d.calls != 3 {
		t.Errorf("dial called %d times, want 3", d.calls)
	}
}

func TestConnection_Close(t *testing.T) {
	d := &fakeDialer{}
	c := newConnection(ConnectionConfig{}, logr.Discard(), d.dial)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() before dial failed: %v", err)
	}
	if _, err := c.Libvirt(context.Background()); err != nil {
		t.Fatalf("Libvirt() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if d.sessions[0].closed != 1 {
		t.Errorf("session closed %d times, want 1", d.sessions[0].closed)
	}

	if _, err := c.Libvirt(context.Background()); err != nil {
		t.Fatalf("Libvirt() after Close failed: %v", err)
	}
	if d.calls != 2 {
		t.Errorf("dial called %d times, want 2", d.calls)
	}
}
