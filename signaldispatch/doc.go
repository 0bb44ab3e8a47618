// Package signaldispatch is a dedicated signal thread: every other
// goroutine in the process runs with no special signal handling of its
// own, and this package is the single place that turns SIGINT/SIGTERM
// into a shutdown flag the supervisor observes on its next tick, SIGUSR1
// into an on-demand diagnostic dump, and SIGSEGV into a logged, forced
// exit rather than a silent crash.
//
// Grounded on the teacher's cmd/semstreams/main.go, which sets up exactly
// one signal.NotifyContext for SIGINT/SIGTERM; this package generalizes
// that to a fuller signal set and gives it a long-lived goroutine of its
// own instead of a single context cancellation.
package signaldispatch
