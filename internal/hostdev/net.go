package hostdev

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Links answers questions about network links through netlink.
type Links struct{}

// Exists reports whether a link with the given name exists.
func (Links) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := netlink.LinkByName(name)
	return err == nil
}

// SetUp brings a link up if it is not up already.
func (Links) SetUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("link %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to look up link %s: %w", name, err)
	}
	if link.Attrs().Flags&net.FlagUp != 0 {
		return nil
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to set link %s up: %w", name, err)
	}
	return nil
}

// DefaultInterface returns the name of the link carrying the IPv4 default
// route.
func (Links) DefaultInterface() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("failed to list routes: %w", err)
	}
	for _, r := range routes {
		if r.Dst != nil {
			if ones, _ := r.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			return "", fmt.Errorf("failed to look up default route link: %w", err)
		}
		return link.Attrs().Name, nil
	}
	return "", fmt.Errorf("default route: %w", ErrNotFound)
}
