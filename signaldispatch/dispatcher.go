package signaldispatch

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// DumpFunc produces the high-verbosity ring/server parameter dump SIGUSR1
// triggers. Returning a string rather than logging directly keeps the
// dispatcher independent of what "ring parameters" and "server parameters"
// mean to the caller.
type DumpFunc func() string

// Dispatcher is the single owner of process signal handling. Every other
// goroutine in the process should never call signal.Notify itself.
type Dispatcher struct {
	ch       chan os.Signal
	shutdown atomic.Bool
	dump     DumpFunc
	logger   *slog.Logger
}

// New constructs a Dispatcher. dump may be nil, in which case SIGUSR1 is
// logged and otherwise ignored. logger defaults to slog.Default() when nil.
func New(dump DumpFunc, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ch:     make(chan os.Signal, 8),
		dump:   dump,
		logger: logger,
	}
}

// ShutdownRequested reports whether a graceful-shutdown signal has been
// observed. The supervisor polls this once per tick.
func (d *Dispatcher) ShutdownRequested() bool {
	return d.shutdown.Load()
}

// Run registers for every signal, then ignores SIGPIPE (signal.Ignore) so
// writes to a closed socket fail with an error rather than raising a
// signal at all — the broken-pipe signal is removed from the wait set. It
// blocks until ctx is cancelled, reacting to each
// signal as it arrives.
func (d *Dispatcher) Run(ctx context.Context) {
	signal.Notify(d.ch)
	signal.Ignore(syscall.SIGPIPE)
	defer signal.Stop(d.ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-d.ch:
			d.handle(sig)
		}
	}
}

func (d *Dispatcher) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		d.logger.Info("shutdown signal received", "signal", sig.String())
		d.shutdown.Store(true)
	case syscall.SIGUSR1:
		d.logger.Info("diagnostic dump requested", "signal", sig.String())
		if d.dump != nil {
			d.logger.Info("diagnostic dump", "report", d.dump())
		}
	case syscall.SIGSEGV:
		d.logger.Error("segmentation fault signal received, exiting", "signal", sig.String())
		os.Exit(2)
	default:
		d.logger.Debug("signal ignored", "signal", sig.String())
	}
}
