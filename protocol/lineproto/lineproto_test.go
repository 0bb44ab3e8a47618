package lineproto

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

func netipLoopback() netip.Addr {
	return netip.MustParseAddr("127.0.0.1")
}

func newTestRing(t *testing.T) *ring.Ring {
	t.Helper()
	r, err := ring.New(8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestHandleRejectsBadHandshake(t *testing.T) {
	r := newTestRing(t)
	h := New(r)
	client, server := net.Pipe()
	defer client.Close()

	record := registry.NewClientRecord(netipLoopback(), "127.0.0.1", "1234", "127.0.0.1:1234")

	done := make(chan error, 1)
	go func() { done <- h.Handle(context.Background(), server, record) }()

	_, err := client.Write([]byte("NOT A HANDSHAKE\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handshake rejection")
	}
	require.Equal(t, registry.Closed, record.Lifecycle.State())
}

func TestHandleStreamsPacketsAfterHandshake(t *testing.T) {
	r := newTestRing(t)
	_, err := r.Write("STREAM1", []byte("hello"))
	require.NoError(t, err)

	h := New(r)
	client, server := net.Pipe()
	defer client.Close()

	record := registry.NewClientRecord(netipLoopback(), "127.0.0.1", "1234", "127.0.0.1:1234")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Handle(ctx, server, record) }()

	_, err = client.Write([]byte(Handshake + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	header, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "STREAM1 5\n", header)

	body := make([]byte, 5)
	_, err = reader.Read(body)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))

	// The counters are bumped after conn.Write returns, which can be just
	// after the client has read the frame.
	require.Eventually(t, func() bool { return atomic.LoadInt64(&record.TxPackets) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&record.TxBytes) == 5 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Handle to return after cancellation")
	}
}

func TestHandleHonoursStreamLimitPattern(t *testing.T) {
	r := newTestRing(t)
	_, err := r.Write("REJECTED", []byte("x"))
	require.NoError(t, err)
	_, err = r.Write("ALLOWED", []byte("y"))
	require.NoError(t, err)

	h := New(r)
	client, server := net.Pipe()
	defer client.Close()

	record := registry.NewClientRecord(netipLoopback(), "127.0.0.1", "1234", "127.0.0.1:1234")
	record.LimitPattern = "^ALLOWED$"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = h.Handle(ctx, server, record) }()

	_, err = client.Write([]byte(Handshake + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	header, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(header, "ALLOWED "))
}
