// Package transferlog owns the rolling per-client transfer log: a writable
// base directory, optional file prefix, a fixed-hour window, and
// independent TX/RX enable flags. Grounded on the
// teacher's output/file buffered-writer idiom (directory/prefix naming,
// mutex-guarded file handle, append open flag), adapted from "flush a
// batched NATS message buffer" to "append one row per client on each
// supervisor tick that crosses the rollover boundary, and rotate the file on
// a time boundary instead of size".
package transferlog
