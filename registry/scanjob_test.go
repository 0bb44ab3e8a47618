package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScanJobRunScansImmediatelyThenOnEachTick(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	job, err := NewScanJob(ScanJobConfig{Path: dir}, nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = job.Run(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, job.seen, filepath.Join(dir, "a.txt"))
}

func TestScanJobRunReturnsScanError(t *testing.T) {
	job, err := NewScanJob(ScanJobConfig{Path: filepath.Join(t.TempDir(), "missing")}, nil, 1)
	require.NoError(t, err)

	err = job.Run(context.Background(), time.Hour)
	require.Error(t, err)
}
