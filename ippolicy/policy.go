package ippolicy

import "net/netip"

// Policy bundles the listener's five ordered CIDR lists.
type Policy struct {
	Match   List // if non-empty, an address must match one of these to be admitted
	Reject  List // an address matching this list is always rejected
	Write   List // addresses on this list get write permission, skip the per-IP cap, and may use the global cap's reserve
	Trusted List // addresses on this list are marked trusted for the protocol dispatcher
	Limit   List // addresses on this list get a stream-ID pattern restricting what they may read
}

// Decision is the outcome of evaluating a connecting address against a
// Policy, along with the derived per-connection flags assigned from it.
type Decision struct {
	Admit      bool
	Reason     string
	WritePerm  bool
	Trusted    bool
	LimitEntry Entry
	HasLimit   bool
}

// Evaluate applies the admission rules in their fixed order: match list,
// then reject list, then per-IP cap (left to the caller, which
// must supply the current connection count from that address), then the
// global cap (also left to the caller). Evaluate itself only produces the
// match/reject/write/trusted/limit verdict; cap enforcement happens in the
// listener, which has the live client counts this package does not track.
func (p Policy) Evaluate(addr netip.Addr) Decision {
	if len(p.Match) > 0 && !p.Match.Contains(addr) {
		return Decision{Admit: false, Reason: "address not in match list"}
	}
	if p.Reject.Contains(addr) {
		return Decision{Admit: false, Reason: "address in reject list"}
	}

	d := Decision{Admit: true}
	if _, ok := p.Write.Match(addr); ok {
		d.WritePerm = true
	}
	if _, ok := p.Trusted.Match(addr); ok {
		d.Trusted = true
	}
	if entry, ok := p.Limit.Match(addr); ok {
		d.LimitEntry = entry
		d.HasLimit = true
	}
	return d
}

// HasWritePermission is a narrow helper for the per-IP cap check, which
// only needs to know whether an address is exempt via the write list.
func (p Policy) HasWritePermission(addr netip.Addr) bool {
	return p.Write.Contains(addr)
}
