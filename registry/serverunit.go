package registry

import "context"

// ServerUnitKind tags what a ServerUnit wraps.
type ServerUnitKind int

const (
	KindListener ServerUnitKind = iota
	KindDirectoryScanner
)

func (k ServerUnitKind) String() string {
	switch k {
	case KindListener:
		return "listener"
	case KindDirectoryScanner:
		return "directory-scanner"
	default:
		return "unknown"
	}
}

// ServerUnit wraps a long-lived worker: a listener bound to a
// ListenEndpoint, or a directory scanner bound to a scan-job description.
// Exactly one goroutine runs per active ServerUnit.
type ServerUnit struct {
	ID        UnitID
	Kind      ServerUnitKind
	Lifecycle *Lifecycle
	Payload   any

	cancel context.CancelFunc
	done   chan struct{}

	LastError error
}

// NewServerUnit constructs a ServerUnit in Spawning state with a fresh id.
// cancel is invoked when the supervisor requests a stop; done is closed by
// the worker's run loop when it exits, and is what the supervisor's reap
// pass waits on to confirm the unit is safe to free.
func NewServerUnit(kind ServerUnitKind, payload any, cancel context.CancelFunc) *ServerUnit {
	return &ServerUnit{
		ID:        NewUnitID(),
		Kind:      kind,
		Lifecycle: NewLifecycle(),
		Payload:   payload,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// RequestStop transitions the unit to Close and cancels its context. Safe
// to call more than once.
func (u *ServerUnit) RequestStop() {
	u.Lifecycle.RequestClose()
	if u.cancel != nil {
		u.cancel()
	}
}

// MarkDone closes the unit's done channel and transitions it to Closed.
// Called exactly once by the unit's own goroutine on exit.
func (u *ServerUnit) MarkDone(err error) {
	u.LastError = err
	u.Lifecycle.SetClosed()
	close(u.done)
}

// Join blocks until the unit's goroutine has called MarkDone, or ctx is
// done. Returns nil once the unit has exited.
func (u *ServerUnit) Join(ctx context.Context) error {
	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
