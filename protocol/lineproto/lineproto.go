// Package lineproto is a reference protocol.Handler: a minimal text
// protocol that streams ring packets to a consumer as
// "<streamID> <length>\n<data>" frames. It stands in for the real
// DataLink/SeedLink/HTTP parsers the core treats as pluggable, exercising
// the same contract they would: handshake, counters, the stream-ID limit,
// and lifecycle teardown.
package lineproto

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/protocol"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

// pollInterval bounds how long Handle can block between checking for
// shutdown while waiting on new packets, mirroring the teacher's
// SetReadDeadline-driven poll loop in input/udp.
const pollInterval = 100 * time.Millisecond

// Handshake is the line a client must send immediately after connecting.
// Anything else is rejected; this stands in for real protocol detection.
const Handshake = "HELLO RINGWIRE"

// Handler streams packets from a ring to line-protocol consumers.
type Handler struct {
	Ring *ring.Ring
}

// New returns a lineproto Handler bound to r.
func New(r *ring.Ring) *Handler {
	return &Handler{Ring: r}
}

var _ protocol.Handler = (*Handler)(nil)

// Handle implements protocol.Handler. It performs the handshake, then
// streams every packet from the client's current cursor forward until ctx
// is cancelled, the record's Lifecycle is moved to Close, the connection
// errs, or the peer disconnects.
func (h *Handler) Handle(ctx context.Context, conn net.Conn, record *registry.ClientRecord) error {
	reader := bufio.NewReader(conn)
	if err := h.handshake(conn, reader, record); err != nil {
		record.Lifecycle.SetClosed()
		return err
	}
	record.Protocol = registry.ProtocolDataLink
	record.Lifecycle.SetActive()
	defer protocol.FinishLifecycle(record)
	defer conn.Close()

	disconnected := make(chan struct{})
	go h.watchForDisconnect(reader, disconnected)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-disconnected:
			return nil
		default:
		}
		if record.Lifecycle.State() == registry.Close {
			return nil
		}

		pkt, cur, ok := h.Ring.Next(record.Reader)
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		record.Reader = cur

		if !protocol.StreamAllowed(record.LimitPattern, pkt.StreamID) {
			continue
		}

		if err := writeFrame(conn, pkt.StreamID, pkt.Data); err != nil {
			return errors.WrapTransient(err, "lineproto", "Handle", "write frame")
		}

		atomic.AddInt64(&record.TxPackets, 1)
		atomic.AddInt64(&record.TxBytes, int64(len(pkt.Data)))
		record.TouchExchange()
	}
}

func (h *Handler) handshake(conn net.Conn, reader *bufio.Reader, record *registry.ClientRecord) error {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := reader.ReadString('\n')
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		return errors.WrapTransient(err, "lineproto", "handshake", "read handshake")
	}
	if strings.TrimSpace(line) != Handshake {
		return errors.WrapInvalid(errors.ErrInvalidData, "lineproto", "handshake", "unrecognized handshake line")
	}
	record.TouchExchange()
	atomic.AddInt64(&record.RxPackets, 1)
	atomic.AddInt64(&record.RxBytes, int64(len(line)))
	return nil
}

// watchForDisconnect blocks on a read until the peer closes the connection
// or sends unexpected data, then signals disconnected. Line-protocol
// consumers send nothing after the handshake; any read returning is a
// disconnect signal either way.
func (h *Handler) watchForDisconnect(reader *bufio.Reader, disconnected chan<- struct{}) {
	defer close(disconnected)
	buf := make([]byte, 1)
	for {
		if _, err := reader.Read(buf); err != nil {
			return
		}
	}
}

func writeFrame(conn net.Conn, streamID string, data []byte) error {
	header := fmt.Sprintf("%s %d\n", streamID, len(data))
	if _, err := conn.Write([]byte(header)); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}
