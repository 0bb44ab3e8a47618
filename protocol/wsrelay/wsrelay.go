// Package wsrelay is a reference protocol.Handler exposing the ring over a
// WebSocket, for browser-based consumers. Grounded on the teacher's
// output/websocket per-connection goroutine, ping/pong keepalive, and
// write-mutex idiom, adapted from "broadcast NATS messages" to "stream ring
// packets to a single upgraded connection already admitted by the core".
package wsrelay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/protocol"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
	pollPeriod = 100 * time.Millisecond
)

// Frame is the JSON envelope a consumer receives per packet.
type Frame struct {
	StreamID string `json:"stream_id"`
	Data     []byte `json:"data"`
}

// Handler upgrades an admitted HTTP connection to a WebSocket and streams
// ring packets to it as JSON frames.
type Handler struct {
	Ring     *ring.Ring
	upgrader websocket.Upgrader
}

// New returns a wsrelay Handler bound to r.
func New(r *ring.Ring) *Handler {
	return &Handler{
		Ring:     r,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
	}
}

var _ protocol.Handler = (*Handler)(nil)

// Handle implements protocol.Handler. It does not serve conn: it always
// returns an invalid-config error, because a WebSocket client is reached
// through ServeUpgrade from an http.Handler.
func (h *Handler) Handle(ctx context.Context, conn net.Conn, record *registry.ClientRecord) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "wsrelay", "Handle",
		"wsrelay requires an HTTP upgrade; use ServeUpgrade from an http.Handler instead")
}

// ServeUpgrade upgrades w/r to a WebSocket and streams ring packets to it
// until the connection drops or ctx is cancelled. Intended to be called from
// the HTTP endpoint an admitted client's protocol selection routes to.
func (h *Handler) ServeUpgrade(ctx context.Context, w http.ResponseWriter, r *http.Request, record *registry.ClientRecord) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.WrapTransient(err, "wsrelay", "ServeUpgrade", "upgrade connection")
	}
	defer conn.Close()

	record.Protocol = registry.ProtocolHTTP
	record.Lifecycle.SetActive()
	defer protocol.FinishLifecycle(record)

	var writeMu sync.Mutex
	closed := atomic.Bool{}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	disconnected := make(chan struct{})
	var closeOnce sync.Once
	signalDisconnect := func() { closeOnce.Do(func() { close(disconnected) }) }

	go h.readPump(conn, record, signalDisconnect)
	go h.pingLoop(conn, &writeMu, &closed, disconnected)

	for {
		select {
		case <-ctx.Done():
			closed.Store(true)
			return nil
		case <-disconnected:
			closed.Store(true)
			return nil
		default:
		}

		pkt, cur, ok := h.Ring.Next(record.Reader)
		if !ok {
			time.Sleep(pollPeriod)
			continue
		}
		record.Reader = cur

		if !protocol.StreamAllowed(record.LimitPattern, pkt.StreamID) {
			continue
		}

		frame, err := json.Marshal(Frame{StreamID: pkt.StreamID, Data: pkt.Data})
		if err != nil {
			continue
		}

		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, frame)
		writeMu.Unlock()
		if err != nil {
			closed.Store(true)
			return errors.WrapTransient(err, "wsrelay", "ServeUpgrade", "write frame")
		}

		atomic.AddInt64(&record.TxPackets, 1)
		atomic.AddInt64(&record.TxBytes, int64(len(pkt.Data)))
		record.TouchExchange()
	}
}

// readPump drains control frames from the client (pong frames are handled
// by the pong handler installed in ServeUpgrade). Any read error,
// including a clean close, signals disconnection.
func (h *Handler) readPump(conn *websocket.Conn, record *registry.ClientRecord, signalDisconnect func()) {
	defer signalDisconnect()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		atomic.AddInt64(&record.RxPackets, 1)
		atomic.AddInt64(&record.RxBytes, int64(len(data)))
		record.TouchExchange()
	}
}

// pingLoop sends periodic pings to detect a dead peer, matching the
// teacher's keepalive cadence.
func (h *Handler) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, closed *atomic.Bool, disconnected <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-disconnected:
			return
		case <-ticker.C:
			if closed.Load() {
				return
			}
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
