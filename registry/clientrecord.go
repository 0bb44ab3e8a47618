package registry

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ringwire/streamserver/ring"
)

// Protocol tags the wire protocol a client has been detected to speak.
// Undetermined until the protocol handler's handshake decides.
type Protocol int

const (
	ProtocolUndetermined Protocol = iota
	ProtocolDataLink
	ProtocolSeedLink
	ProtocolHTTP
)

// rateCounter is a two-slot {current, previous} pair holding per-client
// rate history: current holds the counter reading taken at the last
// rate-update pass (the history the next pass measures a delta against),
// previous holds the reading before that. rollover(latest) shifts current
// into previous and stores the freshly observed counter value as the new
// current.
type rateCounter struct {
	current  int64
	previous int64
}

func (r *rateCounter) rollover(latest int64) {
	r.previous = r.current
	r.current = latest
}

// ClientRecord is the per-connection state: identity, admission-derived
// flags, cumulative counters with one-step history, derived rates, and a
// reader cursor into the ring.
type ClientRecord struct {
	ID UnitID

	// Identity
	Addr        netip.Addr
	Port        uint16
	HostStr     string // numeric host, or "unix" for UNIX endpoints
	PortStr     string // numeric port, or the endpoint's path for UNIX
	DisplayID   string
	EndpointTag string // identifies which ListenEndpoint admitted this client

	Protocol  Protocol
	TLS       bool
	WritePerm bool
	Trusted   bool

	LimitPattern string // raw stream-ID regex, "" if none

	ConnectTime    time.Time
	LastExchange   int64 // unix nanos, updated atomically by the client worker
	HTTPHeaders    map[string]string
	ArchiveWriter  any // opaque per-client archive-writer descriptor, nil unless mseedArchive is configured

	// Cumulative counters, written by the owning client worker and read
	// by the supervisor without a lock: monotonic integer reads are safe
	// for rate purposes.
	TxPackets int64
	TxBytes   int64
	RxPackets int64
	RxBytes   int64

	txPacketRate rateCounter
	txByteRate   rateCounter
	rxPacketRate rateCounter
	rxByteRate   rateCounter
	rateTime     time.Time

	TxPacketRate float64
	TxByteRate   float64
	RxPacketRate float64
	RxByteRate   float64

	Reader     ring.Cursor
	PercentLag int

	Lifecycle *Lifecycle
}

// NewClientRecord builds a ClientRecord for a freshly admitted connection:
// zeroed counters, connectTime == lastExchange == now, protocol
// undetermined. displayIDHint is normally the numeric
// host:port; when the remote port cannot be resolved, a UUID suffix is
// appended instead (matches the reference engine falling back to a
// synthetic identifier).
func NewClientRecord(addr netip.Addr, hostStr, portStr string, displayIDHint string) *ClientRecord {
	now := time.Now()
	displayID := displayIDHint
	if portStr == "" {
		displayID = displayIDHint + "-" + uuid.New().String()[:8]
	}

	return &ClientRecord{
		ID:           NewUnitID(),
		Addr:         addr,
		HostStr:      hostStr,
		PortStr:      portStr,
		DisplayID:    displayID,
		Protocol:     ProtocolUndetermined,
		ConnectTime:  now,
		LastExchange: now.UnixNano(),
		Lifecycle:    NewLifecycle(),
	}
}

// TouchExchange stamps LastExchange to now. Called by the client worker on
// every send/receive.
func (c *ClientRecord) TouchExchange() {
	atomic.StoreInt64(&c.LastExchange, time.Now().UnixNano())
}

// IdleFor returns how long it has been since the last exchange.
func (c *ClientRecord) IdleFor(now time.Time) time.Duration {
	last := atomic.LoadInt64(&c.LastExchange)
	return now.Sub(time.Unix(0, last))
}

// UpdateRates runs the per-client statistics pass: dt is
// (now - rateTime) in seconds, or 1.0 on the first call; rates are the
// delta between the current counters and the one-step history, then
// current rolls into history and rateTime is stamped to now. Must be
// called strictly from the supervisor's single thread.
func (c *ClientRecord) UpdateRates(now time.Time, r *ring.Ring) {
	dt := now.Sub(c.rateTime).Seconds()
	if c.rateTime.IsZero() || dt <= 0 {
		dt = 1.0
	}

	txPackets := atomic.LoadInt64(&c.TxPackets)
	txBytes := atomic.LoadInt64(&c.TxBytes)
	rxPackets := atomic.LoadInt64(&c.RxPackets)
	rxBytes := atomic.LoadInt64(&c.RxBytes)

	c.TxPacketRate = float64(txPackets-c.txPacketRate.current) / dt
	c.TxByteRate = float64(txBytes-c.txByteRate.current) / dt
	c.RxPacketRate = float64(rxPackets-c.rxPacketRate.current) / dt
	c.RxByteRate = float64(rxBytes-c.rxByteRate.current) / dt

	c.txPacketRate.rollover(txPackets)
	c.txByteRate.rollover(txBytes)
	c.rxPacketRate.rollover(rxPackets)
	c.rxByteRate.rollover(rxBytes)
	c.rateTime = now

	if r != nil {
		c.PercentLag = r.PercentLag(c.Reader)
	}
}
