package ippolicy

import "net/netip"

// AddressLister is satisfied by anything that can report the source
// addresses of currently live connections — the registry's client catalog
// in practice. Kept as a narrow interface so this package does not import
// registry (which imports ippolicy for admission decisions).
type AddressLister interface {
	LiveAddresses() []netip.Addr
}

// CountFromAddress computes the per-source connection count: walk the
// live client list and count entries whose address matches addr, comparing
// full address bytes within the same family. Family and full-address
// comparison (not prefix) mirrors ClientIPCount's memcmp over sin_addr /
// sin6_addr.
func CountFromAddress(clients AddressLister, addr netip.Addr) int {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	count := 0
	for _, live := range clients.LiveAddresses() {
		if live.Is4In6() {
			live = live.Unmap()
		}
		if live.Is4() == addr.Is4() && live == addr {
			count++
		}
	}
	return count
}
