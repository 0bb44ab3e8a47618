// Package protocol defines the pluggable wire-protocol contract the core
// dispatches accepted connections to. The concrete protocol parsers
// (DataLink, SeedLink, HTTP) stay out of scope; this package only fixes the
// shape a handler must satisfy — detect the protocol, run it to completion,
// keep the client's counters and lifecycle current — plus two reference
// handlers (lineproto, wsrelay) that exercise the contract end to end.
package protocol
