package transferlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ringwire/streamserver/errors"
)

// Writer appends one row per client per rollover tick to the file backing
// the current Window, rotating to a new file when the window advances.
// Grounded on the teacher's output/file Output: a mutex-guarded *os.File
// opened for append, written to directly rather than batched,
// since transfer-log rows are already coalesced to one per client per tick.
type Writer struct {
	mu     sync.Mutex
	window Window
	file   *os.File
}

// NewWriter creates BaseDir if needed and opens the file for window.
func NewWriter(window Window) (*Writer, error) {
	if window.BaseDir == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "transferlog", "NewWriter", "base directory is required")
	}
	if err := os.MkdirAll(window.BaseDir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "transferlog", "NewWriter", "create base directory")
	}
	w := &Writer{window: window}
	if err := w.openLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openLocked() error {
	path := filepath.Join(w.window.BaseDir, fileName(w.window))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "transferlog", "openLocked", "open transfer log file")
	}
	w.file = f
	return nil
}

func fileName(w Window) string {
	prefix := w.Prefix
	if prefix == "" {
		prefix = "transfer"
	}
	return fmt.Sprintf("%s-%s.log", prefix, w.Start.UTC().Format("20060102T150405Z"))
}

// Row is one client's accumulated transfer counts at the moment a
// supervisor tick decided to log them.
type Row struct {
	At          time.Time
	ClientID    string
	DisplayID   string
	TxPackets   int64
	TxBytes     int64
	RxPackets   int64
	RxBytes     int64
}

// WriteRow appends one tab-separated row, honouring the window's TX/RX
// enable flags by zeroing the disabled direction's columns rather than
// omitting them, so every row has a stable column count.
func (w *Writer) WriteRow(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return errors.WrapFatal(errors.ErrStorageUnavailable, "transferlog", "WriteRow", "writer is closed")
	}

	txPackets, txBytes := row.TxPackets, row.TxBytes
	if !w.window.EnableTX {
		txPackets, txBytes = 0, 0
	}
	rxPackets, rxBytes := row.RxPackets, row.RxBytes
	if !w.window.EnableRX {
		rxPackets, rxBytes = 0, 0
	}

	line := fmt.Sprintf("%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
		row.At.UTC().Format(time.RFC3339), row.ClientID, row.DisplayID,
		txPackets, txBytes, rxPackets, rxBytes)

	if _, err := w.file.WriteString(line); err != nil {
		return errors.WrapTransient(err, "transferlog", "WriteRow", "write row")
	}
	return nil
}

// Rollover closes the current file and opens the one for next, called once
// the tick loop's rollover-boundary check trips.
func (w *Writer) Rollover(next Window) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		_ = w.file.Close()
	}
	w.window = next
	return w.openLocked()
}

// Window returns the writer's current window.
func (w *Writer) Window() Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.window
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
