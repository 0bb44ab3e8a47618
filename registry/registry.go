package registry

import "net/netip"

// ReserveConnections is the reserve budget the global client cap extends
// to write-permitted sources, named directly after the reference engine's
// RESERVECONNECTIONS constant.
const ReserveConnections = 10

// Registry owns the two catalogs: server units (listeners, directory
// scanners) and client units (one per accepted connection).
type Registry struct {
	ServerUnits *Catalog[*ServerUnit]
	ClientUnits *Catalog[*ClientRecord]
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		ServerUnits: NewCatalog[*ServerUnit](),
		ClientUnits: NewCatalog[*ClientRecord](),
	}
}

// ClientCount returns the number of client units currently tracked,
// regardless of lifecycle state — callers that need the live count should
// reap Closed entries first.
func (r *Registry) ClientCount() int {
	return r.ClientUnits.Len()
}

// LiveAddresses implements ippolicy.AddressLister: the source addresses of
// every non-Closed client, for the per-source connection count.
func (r *Registry) LiveAddresses() []netip.Addr {
	var addrs []netip.Addr
	r.ClientUnits.Each(func(_ UnitID, c *ClientRecord) {
		if c.Lifecycle.State() != Closed {
			addrs = append(addrs, c.Addr)
		}
	})
	return addrs
}

// ReapServerUnits removes every server unit in Closed state, returning how
// many were removed: for each unit in Closed, join it and drop its record
// — joining happens before this is called (the caller already observed
// the unit's done channel close via ServerUnit.Join).
func (r *Registry) ReapServerUnits() int {
	reaped := 0
	for id, u := range r.ServerUnits.Snapshot() {
		if u.Lifecycle.State() == Closed {
			r.ServerUnits.Remove(id)
			reaped++
		}
	}
	return reaped
}

// ReapClientUnits removes every client unit in Closed state, returning how
// many were removed.
func (r *Registry) ReapClientUnits() int {
	reaped := 0
	for id, c := range r.ClientUnits.Snapshot() {
		if c.Lifecycle.State() == Closed {
			r.ClientUnits.Remove(id)
			reaped++
		}
	}
	return reaped
}
