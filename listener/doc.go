// Package listener implements one acceptor per configured ListenEndpoint
// (TCP port or UNIX socket): bind, accept, apply the IP admission policy,
// build a ClientRecord, and hand off to the registry.
//
// The accept-loop shape — bind, spawn a goroutine with a WaitGroup and a
// shutdown channel, retry transient accept errors, exit cleanly on
// shutdown — is grounded on the teacher's input/udp read loop, generalized
// from one UDP socket to a net.Listener-based Accept() loop with an
// admission pipeline ahead of handoff.
package listener
