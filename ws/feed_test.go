package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, f *Feed) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := f.Subscribe(w, r); err != nil {
			t.Logf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	f := NewFeed()
	defer f.Close()
	wsURL := newFeedServer(t, f)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan []byte, 1)
	go func() {
		if _, b, err := conn.ReadMessage(); err == nil {
			received <- b
		}
	}()

	// registration races the dial handshake, so broadcast until the
	// message lands
	deadline := time.After(2 * time.Second)
	for {
		f.Broadcast(map[string]string{"file": "setup.exe"})
		select {
		case b := <-received:
			assert.Contains(t, string(b), "setup.exe")
			return
		case <-deadline:
			t.Fatal("broadcast never reached the subscriber")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBroadcastNeverBlocksOnStalledSubscriber(t *testing.T) {
	f := NewFeed()
	defer f.Close()
	wsURL := newFeedServer(t, f)

	// this client never reads, so its socket buffers and send queue
	// fill up
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	payload := map[string]string{"blob": strings.Repeat("x", 64<<10)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 600; i++ {
			f.Broadcast(payload)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Broadcast blocked behind a subscriber that stopped reading")
	}
}
