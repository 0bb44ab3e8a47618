package protocol

import (
	"context"
	"net"
	"regexp"

	"github.com/ringwire/streamserver/registry"
)

// Handler is the protocol handler contract: given an admitted
// connection and its ClientRecord, it owns the socket until the client
// disconnects or the context is cancelled. It is responsible for any
// protocol-selection handshake, all protocol state, keeping tx/rx counters
// and LastExchange current, honouring the stream-ID limit pattern, and
// driving the record's Lifecycle through Close/Closing/Closed on the way
// out.
type Handler interface {
	Handle(ctx context.Context, conn net.Conn, record *registry.ClientRecord) error
}

// StreamAllowed reports whether streamID passes a client's limit pattern.
// An empty pattern admits every stream, matching the reference engine's
// "no limit configured" behaviour.
func StreamAllowed(limitPattern, streamID string) bool {
	if limitPattern == "" {
		return true
	}
	re, err := regexp.Compile(limitPattern)
	if err != nil {
		return true
	}
	return re.MatchString(streamID)
}

// FinishLifecycle drives a client's Lifecycle through the terminal sequence
// a handler must leave it in before returning, regardless of how it exits.
func FinishLifecycle(record *registry.ClientRecord) {
	record.Lifecycle.RequestClose()
	record.Lifecycle.SetClosing()
	record.Lifecycle.SetClosed()
}
