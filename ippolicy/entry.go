package ippolicy

import (
	"net/netip"
	"regexp"

	"github.com/ringwire/streamserver/errors"
)

// Entry is one network/mask pair in an ordered policy list, with an
// optional opaque per-address payload — currently a stream-ID limit
// pattern, matching the reference engine's IPNet.limitstr.
type Entry struct {
	Prefix     netip.Prefix
	LimitRegex *regexp.Regexp
	rawPattern string
}

// Pattern returns the raw, uncompiled stream-ID pattern this entry was
// built from, or "" if it carries none.
func (e Entry) Pattern() string {
	return e.rawPattern
}

// NewEntry parses a CIDR string (e.g. "192.168.0.0/16" or "::1/128") and an
// optional stream-ID regex, compiling the latter once at config-load time —
// the same "validate once, store compiled form" idiom the security config
// uses for TLS settings.
func NewEntry(cidr, limitPattern string) (Entry, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Entry{}, errors.WrapInvalid(err, "ippolicy", "NewEntry", "parse CIDR "+cidr)
	}
	prefix = prefix.Masked()

	var re *regexp.Regexp
	if limitPattern != "" {
		re, err = regexp.Compile(limitPattern)
		if err != nil {
			return Entry{}, errors.WrapInvalid(err, "ippolicy", "NewEntry", "compile limit pattern "+limitPattern)
		}
	}

	return Entry{Prefix: prefix, LimitRegex: re, rawPattern: limitPattern}, nil
}

// matches reports whether addr falls within this entry's network, per
// family: IPv4 compared against IPv4, IPv6 against IPv6, no cross-family
// matching (mirrors the reference engine refusing to compare across
// sa_family values).
func (e Entry) matches(addr netip.Addr) bool {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if e.Prefix.Addr().Is4() != addr.Is4() {
		return false
	}
	return e.Prefix.Contains(addr)
}
