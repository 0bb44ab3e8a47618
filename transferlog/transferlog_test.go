package transferlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWindowAlignsToIntervalBoundary(t *testing.T) {
	now := time.Date(2026, 8, 2, 13, 45, 0, 0, time.UTC)
	w := NewWindow("/tmp/x", "ring", 1, true, true, now)
	require.Equal(t, time.Date(2026, 8, 2, 13, 0, 0, 0, time.UTC), w.Start)
	require.Equal(t, time.Date(2026, 8, 2, 14, 0, 0, 0, time.UTC), w.End)
	require.True(t, w.Contains(now))
	require.False(t, w.Contains(w.End))
}

func TestWindowNextAdvancesByInterval(t *testing.T) {
	now := time.Date(2026, 8, 2, 13, 45, 0, 0, time.UTC)
	w := NewWindow("/tmp/x", "ring", 1, true, true, now)
	next := w.Next()
	require.Equal(t, w.End, next.Start)
	require.Equal(t, w.End.Add(time.Hour), next.End)
}

func TestWriterWritesRowsAndZeroesDisabledDirection(t *testing.T) {
	dir := t.TempDir()
	w := NewWindow(dir, "ring", 1, true, false, time.Now())
	writer, err := NewWriter(w)
	require.NoError(t, err)
	defer writer.Close()

	err = writer.WriteRow(Row{
		At:        time.Now(),
		ClientID:  "1",
		DisplayID: "10.0.0.1:4000",
		TxPackets: 3, TxBytes: 300,
		RxPackets: 5, RxBytes: 500,
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	line := strings.TrimSpace(string(contents))
	fields := strings.Split(line, "\t")
	require.Len(t, fields, 7)
	require.Equal(t, "3", fields[3])
	require.Equal(t, "300", fields[4])
	require.Equal(t, "0", fields[5]) // RX disabled: zeroed
	require.Equal(t, "0", fields[6])
}

func TestWriterRolloverOpensNewFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 2, 13, 0, 0, 0, time.UTC)
	w := NewWindow(dir, "ring", 1, true, true, now)
	writer, err := NewWriter(w)
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.WriteRow(Row{At: now, ClientID: "1", DisplayID: "a"}))
	require.NoError(t, writer.Rollover(w.Next()))
	require.NoError(t, writer.WriteRow(Row{At: now.Add(time.Hour), ClientID: "1", DisplayID: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestNewWriterRequiresBaseDir(t *testing.T) {
	_, err := NewWriter(Window{})
	require.Error(t, err)
}
