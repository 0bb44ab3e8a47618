// Package ring implements the in-memory reference RingHandle the server
// core consumes as an external collaborator: a fixed-capacity, wrap-around
// store of recent packets with independent reader cursors.
//
// The on-disk packet-record layout, mmap persistence, and stream index a
// production ring engine would need are explicitly out of scope (the real
// engine is "consumed through a typed handle"); this package supplies that
// handle with enough behavior — offsets, wraparound, percent-lag, the
// auto-recovery init protocol — to drive the supervisor and listener and to
// make the testable properties in the ring-server specification exercisable
// without a real mmap-backed store.
//
// Ring is built on the same mutex-plus-condition-variable shape as
// pkg/buffer's circularBuffer[T], generalized from a FIFO queue to an
// indexable ring: a buffer.Buffer[T] reader dequeues (it consumes the item),
// but a ring reader here holds a cursor and peeks forward at its own pace
// while the writer keeps advancing, so multiple readers can be at different
// offsets into the same live window at once.
package ring
