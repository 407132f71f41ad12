// Package libvirt manages connections to the local libvirt daemon.
//
// Client wraps one github.com/digitalocean/go-libvirt connection opened on a
// driver URI (URIVMs or URIContainers). Connection keeps a Client alive for
// long-running callers: every call to Libvirt pings the current client and
// reopens it when the daemon has gone away, starting the daemon through a
// ServiceDelegate first.
//
//	conn := libvirt.NewConnection(libvirt.ConnectionConfig{
//	    URI:     libvirt.URIVMs,
//	    Service: libvirt.SystemdService{},
//	}, log)
//	defer conn.Close()
//
//	l, err := conn.Libvirt(ctx)
//	if err != nil {
//	    return err
//	}
//	dom, err := l.DomainLookupByName(uuid)
//
// EventLoop turns libvirt lifecycle events into DomainEvent values and hands
// them to registered callbacks, resubscribing after reconnects.
//
// This package does not define domain operation interfaces. Consumers such as
// internal/lifecycle declare the subset of *libvirt.Libvirt they call.
package libvirt
