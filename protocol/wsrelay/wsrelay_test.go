package wsrelay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

func TestServeUpgradeStreamsFrames(t *testing.T) {
	r, err := ring.New(8)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Write("STREAM1", []byte("hello"))
	require.NoError(t, err)

	h := New(r)
	record := registry.NewClientRecord(netip.MustParseAddr("127.0.0.1"), "127.0.0.1", "1234", "127.0.0.1:1234")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = h.ServeUpgrade(ctx, w, req, record)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), "STREAM1")
	// Frame.Data is a []byte, which encoding/json writes as base64.
	require.Contains(t, string(data), `"data":"aGVsbG8="`)

	require.Eventually(t, func() bool {
		return record.TxPackets == 1
	}, time.Second, 10*time.Millisecond)
}

func TestServeUpgradeHonoursStreamLimitPattern(t *testing.T) {
	r, err := ring.New(8)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Write("REJECTED", []byte("x"))
	require.NoError(t, err)
	_, err = r.Write("ALLOWED", []byte("y"))
	require.NoError(t, err)

	h := New(r)
	record := registry.NewClientRecord(netip.MustParseAddr("127.0.0.1"), "127.0.0.1", "1234", "127.0.0.1:1234")
	record.LimitPattern = "^ALLOWED$"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = h.ServeUpgrade(ctx, w, req, record)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), "ALLOWED")
	require.NotContains(t, string(data), "REJECTED")
}
