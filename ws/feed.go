package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBuffer is the per-connection queue depth; writeTimeout bounds a
// single frame write. A subscriber that exhausts both is dropped.
const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// Feed broadcasts allowed downloads to connected operator dashboards.
// Delivery is fully detached from the caller: every connection has a
// buffered queue drained by its own writer goroutine, so a dashboard
// that stops reading gets dropped instead of stalling a broadcast.
type Feed struct {
	mu       sync.RWMutex
	conns    map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
}

func NewFeed() *Feed {
	return &Feed{
		conns: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     CheckOrigin,
		},
	}
}

// Subscribe upgrades the request and keeps the connection registered
// until the peer goes away. Incoming messages are drained and ignored.
func (f *Feed) Subscribe(w http.ResponseWriter, r *http.Request) error {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	ch := make(chan []byte, sendBuffer)
	f.mu.Lock()
	f.conns[conn] = ch
	f.mu.Unlock()

	go func() {
		for b := range ch {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				f.drop(conn)
				return
			}
		}
	}()
	go func() {
		defer f.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Broadcast queues payload as JSON for every connected dashboard. A
// connection whose queue is full is dropped; the caller never blocks.
func (f *Feed) Broadcast(payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var stalled []*websocket.Conn
	f.mu.RLock()
	for conn, ch := range f.conns {
		select {
		case ch <- b:
		default:
			stalled = append(stalled, conn)
		}
	}
	f.mu.RUnlock()
	for _, conn := range stalled {
		f.drop(conn)
	}
}

// drop unregisters the connection; queues are only closed here, under
// the lock, so Broadcast can never send on a closed channel.
func (f *Feed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if ch, ok := f.conns[conn]; ok {
		delete(f.conns, conn)
		close(ch)
		conn.Close()
	}
	f.mu.Unlock()
}

// Close disconnects everyone.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, ch := range f.conns {
		close(ch)
		conn.Close()
		delete(f.conns, conn)
	}
}
