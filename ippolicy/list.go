package ippolicy

import "net/netip"

// List is an ordered sequence of Entries, searched first-match-wins.
type List []Entry

// Match returns the first entry in the list whose network contains addr,
// and true, or the zero Entry and false if none match. A nil or empty list
// never matches anything.
func (l List) Match(addr netip.Addr) (Entry, bool) {
	for _, e := range l {
		if e.matches(addr) {
			return e, true
		}
	}
	return Entry{}, false
}

// Contains reports whether any entry in the list matches addr.
func (l List) Contains(addr netip.Addr) bool {
	_, ok := l.Match(addr)
	return ok
}
