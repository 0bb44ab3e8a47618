// Package ippolicy implements the listener's IP admission policy: five
// ordered CIDR lists (match, reject, write, trusted, limit), each entry
// optionally carrying a stream-ID pattern, searched first-match-wins.
//
// The matching rule is translated directly from the reference engine's
// MatchIP/ClientIPCount (family-specific mask compare, first match in an
// insertion-ordered list); Go's netip package replaces hand-rolled octet
// comparison, but the search semantics are unchanged.
package ippolicy
