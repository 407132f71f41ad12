package libvirt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocket is the libvirtd socket crucible talks to.
	DefaultSocket = "/run/truenas_libvirt/libvirt-sock"

	// DefaultTimeout bounds dialing the socket.
	DefaultTimeout = 5 * time.Second

	// URIContainers selects the LXC driver.
	URIContainers = "lxc:///system"

	// URIVMs selects the QEMU driver.
	URIVMs = "qemu:///system"
)

// Client wraps a go-libvirt connection bound to one driver URI.
type Client struct {
	libvirt *libvirt.Libvirt
	uri     string
}

// Connect dials the local libvirt daemon and opens uri on it.
// It returns a Client that must be closed via Close() when done.
//
// If socketPath is empty, defaults to DefaultSocket.
// If uri is empty, defaults to URIVMs.
// If timeout is zero, defaults to DefaultTimeout.
func Connect(socketPath, uri string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if uri == "" {
		uri = URIVMs
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.ConnectToURI(libvirt.ConnectURI(uri)); err != nil {
		return nil, fmt.Errorf("failed to connect to %s at %s: %w", uri, socketPath, err)
	}

	return &Client{libvirt: l, uri: uri}, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
func ConnectWithContext(ctx context.Context, socketPath, uri string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, uri, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// URI returns the driver URI the client opened.
func (c *Client) URI() string {
	return c.uri
}

// Ping verifies the connection is still alive by calling a simple libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if !c.libvirt.IsConnected() {
		return fmt.Errorf("libvirt connection is closed")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}

// IsNoDomain reports whether err is libvirt's "domain not found".
func IsNoDomain(err error) bool {
	var lerr libvirt.Error
	if errors.As(err, &lerr) {
		return lerr.Code == uint32(libvirt.ErrNoDomain)
	}
	return false
}
