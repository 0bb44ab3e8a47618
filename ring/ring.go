package ring

import (
	"sync"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/pkg/buffer"
)

// Packet is one record stored in the ring.
type Packet struct {
	ID       uint64
	Offset   uint64
	StreamID string
	Data     []byte
}

// Cursor is a client's reader position into the ring: a packet id and the
// byte offset it was written at. A zero-value Cursor is not Valid — it
// represents a reader that has never been positioned.
type Cursor struct {
	PacketID uint64
	Offset   uint64
	Valid    bool
}

// Ring is a fixed-capacity, wrap-around store of Packets. Capacity is
// expressed in records rather than bytes: the ringSize/pktSize pair bounds
// how many fixed-size packets fit, and this tracks that count directly
// rather than reproducing a byte-addressed ring buffer's layout.
type Ring struct {
	mu       sync.RWMutex
	records  []Packet
	capacity uint64
	nextID   uint64 // id to be assigned to the next written packet
	filled   uint64 // number of currently valid slots, <= capacity

	stats   *buffer.Statistics
	metrics *ringMetrics

	notEmpty *sync.Cond
	closed   bool

	txRate float64
	rxRate float64
}

// Option configures a Ring at construction time.
type Option func(*ringOptions)

type ringOptions struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithMetrics enables Prometheus metrics export for ring statistics.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(o *ringOptions) {
		if registry != nil && prefix != "" {
			o.metricsReg = registry
			o.metricsPrefix = prefix
		}
	}
}

// New creates an empty Ring with room for capacity packets.
func New(capacity int, opts ...Option) (*Ring, error) {
	if capacity <= 0 {
		capacity = 1
	}

	o := &ringOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var metrics *ringMetrics
	if o.metricsReg != nil && o.metricsPrefix != "" {
		var err error
		metrics, err = newRingMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "ring", "New", "metrics registration")
		}
	}

	r := &Ring{
		records:  make([]Packet, capacity),
		capacity: uint64(capacity),
		stats:    buffer.NewStatistics(),
		metrics:  metrics,
	}
	r.notEmpty = sync.NewCond(&r.mu)
	return r, nil
}

// Write appends a packet, evicting the oldest one once the ring is full.
func (r *Ring) Write(streamID string, data []byte) (Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Packet{}, errors.WrapInvalid(errors.ErrAlreadyStopped, "Ring", "Write", "ring closed")
	}

	id := r.nextID
	offset := id % r.capacity
	pkt := Packet{ID: id, Offset: offset, StreamID: streamID, Data: data}
	r.records[offset] = pkt
	r.nextID++

	if r.filled < r.capacity {
		r.filled++
	} else {
		r.stats.Overflow()
		r.stats.Drop()
		if r.metrics != nil {
			r.metrics.recordWraparound()
		}
	}

	r.stats.Write()
	r.stats.UpdateSize(int64(r.filled))
	if r.metrics != nil {
		r.metrics.recordWrite(r.filled, r.capacity)
	}

	r.notEmpty.Broadcast()
	return pkt, nil
}

// latestLocked returns the most recently written packet's id, or false if
// the ring has never been written to. Caller must hold r.mu.
func (r *Ring) latestLocked() (uint64, bool) {
	if r.filled == 0 {
		return 0, false
	}
	return r.nextID - 1, true
}

// earliestLocked returns the oldest live packet's id. Caller must hold r.mu.
func (r *Ring) earliestLocked() (uint64, bool) {
	if r.filled == 0 {
		return 0, false
	}
	if r.filled < r.capacity {
		return 0, true
	}
	return r.nextID - r.capacity, true
}

// Latest returns the packet id and offset of the most recently written
// packet, or ok=false if the ring is empty.
func (r *Ring) Latest() (id uint64, offset uint64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest, ok := r.latestLocked()
	if !ok {
		return 0, 0, false
	}
	return latest, latest % r.capacity, true
}

// Earliest returns the packet id and offset of the oldest live packet, or
// ok=false if the ring is empty.
func (r *Ring) Earliest() (id uint64, offset uint64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	earliest, ok := r.earliestLocked()
	if !ok {
		return 0, 0, false
	}
	return earliest, earliest % r.capacity, true
}

// MaxOffset is the ring's offset-space size: offsets wrap at this value.
func (r *Ring) MaxOffset() uint64 {
	return r.capacity
}

// At returns the packet currently stored at offset, if that offset falls
// within the ring's current live window.
func (r *Ring) At(offset uint64) (Packet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset >= r.capacity {
		return Packet{}, false
	}
	pkt := r.records[offset]
	if pkt.Offset != offset {
		return Packet{}, false
	}
	earliest, ok := r.earliestLocked()
	if !ok {
		return Packet{}, false
	}
	latest, _ := r.latestLocked()
	if pkt.ID < earliest || pkt.ID > latest {
		return Packet{}, false
	}
	return pkt, true
}

// Next returns the packet immediately after cur, advancing the caller's
// cursor. If cur is not Valid, reading starts from the oldest live packet.
// If the reader had fallen behind the ring's retained window it is resynced
// to the oldest available packet rather than returning stale data.
// ok is false when there is no new packet yet.
func (r *Ring) Next(cur Cursor) (Packet, Cursor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest, ok := r.latestLocked()
	if !ok {
		return Packet{}, cur, false
	}
	earliest, _ := r.earliestLocked()

	want := earliest
	if cur.Valid {
		want = cur.PacketID + 1
	}
	if want < earliest {
		want = earliest
	}
	if want > latest {
		return Packet{}, cur, false
	}

	offset := want % r.capacity
	pkt := r.records[offset]
	r.stats.Read()
	if r.metrics != nil {
		r.metrics.recordRead()
	}
	return pkt, Cursor{PacketID: want, Offset: offset, Valid: true}, true
}

// PercentLag reports how far behind the ring's latest packet a cursor is,
// as an integer in [0,100]. Reports 0 when the cursor has no valid position
// or the unwrapped denominator (latest - earliest) is zero — there is no
// lag to report when the ring has not produced enough spread to measure.
func (r *Ring) PercentLag(cur Cursor) int {
	if !cur.Valid {
		return 0
	}

	r.mu.RLock()
	latest, ok := r.latestLocked()
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	earliest, _ := r.earliestLocked()
	maxOffset := r.capacity
	r.mu.RUnlock()

	latestOffset := latest % maxOffset
	earliestOffset := earliest % maxOffset
	readerOffset := cur.Offset

	if readerOffset < earliestOffset {
		readerOffset += maxOffset
	}
	if latestOffset < earliestOffset {
		latestOffset += maxOffset
	}

	denom := latestOffset - earliestOffset
	if denom == 0 {
		return 0
	}

	lag := int(100 * (latestOffset - readerOffset) / denom)
	if lag < 0 {
		return 0
	}
	if lag > 100 {
		return 100
	}
	return lag
}

// SetAggregateRates is called by the supervisor once per tick with the
// ring-wide aggregate of every live client's tx/rx rate.
func (r *Ring) SetAggregateRates(tx, rx float64) {
	r.mu.Lock()
	r.txRate = tx
	r.rxRate = rx
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.setAggregateRates(tx, rx)
	}
}

// AggregateRates returns the last values published by SetAggregateRates.
func (r *Ring) AggregateRates() (tx, rx float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.txRate, r.rxRate
}

// Stats exposes the ring's write/read/overflow counters.
func (r *Ring) Stats() *buffer.Statistics {
	return r.stats
}

// Close shuts the ring down, releasing blocked readers. Idempotent.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.notEmpty.Broadcast()
	return nil
}
