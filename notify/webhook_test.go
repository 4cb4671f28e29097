package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversJSONPayload(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(srv.URL, time.Second)
	require.True(t, d.Enabled())
	assert.True(t, d.Send("burst detected"))

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(got.Load().(string)), &payload))
	assert.Equal(t, "burst detected", payload["text"])
}

func TestSendReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := New(srv.URL, time.Second)
	assert.False(t, d.Send("hello"))
}

func TestSendSwallowsTransportErrors(t *testing.T) {
	// nothing is listening here
	d := New("http://127.0.0.1:1/hook", 200*time.Millisecond)
	assert.False(t, d.Send("hello"))
}

func TestUnconfiguredDispatcherIsDisabled(t *testing.T) {
	d := New("", time.Second)
	assert.False(t, d.Enabled())
	assert.False(t, d.Send("hello"))
}

func TestSendAsyncReportsOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(srv.URL, time.Second)
	done := make(chan bool, 1)
	d.SendAsync("hello", func(delivered bool) { done <- delivered })

	select {
	case delivered := <-done:
		assert.True(t, delivered)
	case <-time.After(2 * time.Second):
		t.Fatal("SendAsync callback never ran")
	}
}

func TestSendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := New(srv.URL, 100*time.Millisecond)
	start := time.Now()
	assert.False(t, d.Send("hello"))
	assert.Less(t, time.Since(start), time.Second)
}
