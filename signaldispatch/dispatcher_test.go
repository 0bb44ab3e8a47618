package signaldispatch

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSIGTERMSetsShutdownFlag(t *testing.T) {
	d := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)
	time.Sleep(10 * time.Millisecond) // let signal.Notify register before we send

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	require.Eventually(t, d.ShutdownRequested, time.Second, 5*time.Millisecond)
}

func TestSIGUSR1InvokesDumpFunc(t *testing.T) {
	var invoked atomic.Bool
	d := New(func() string {
		invoked.Store(true)
		return "ring=ok"
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, invoked.Load, time.Second, 5*time.Millisecond)
	require.False(t, d.ShutdownRequested())
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	d := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
