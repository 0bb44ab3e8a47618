package transferlog

import "time"

// Window is the current rollover window plus the static controls that
// don't change between windows.
type Window struct {
	Start time.Time
	End   time.Time

	BaseDir       string
	Prefix        string
	IntervalHours int
	EnableTX      bool
	EnableRX      bool
}

// NewWindow builds the window containing now, aligned to a boundary that is
// an IntervalHours multiple of hours since the Unix epoch — so two
// processes started at different times within the same window agree on its
// edges.
func NewWindow(baseDir, prefix string, intervalHours int, enableTX, enableRX bool, now time.Time) Window {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	interval := time.Duration(intervalHours) * time.Hour
	epoch := now.UTC().Truncate(interval)
	return Window{
		Start:         epoch,
		End:           epoch.Add(interval),
		BaseDir:       baseDir,
		Prefix:        prefix,
		IntervalHours: intervalHours,
		EnableTX:      enableTX,
		EnableRX:      enableRX,
	}
}

// Contains reports whether t falls inside the window's [Start, End) span.
func (w Window) Contains(t time.Time) bool {
	ut := t.UTC()
	return !ut.Before(w.Start) && ut.Before(w.End)
}

// Next returns the window immediately following w, used when a supervisor
// tick crosses the rollover boundary.
func (w Window) Next() Window {
	interval := time.Duration(w.IntervalHours) * time.Hour
	return Window{
		Start:         w.End,
		End:           w.End.Add(interval),
		BaseDir:       w.BaseDir,
		Prefix:        w.Prefix,
		IntervalHours: w.IntervalHours,
		EnableTX:      w.EnableTX,
		EnableRX:      w.EnableRX,
	}
}
