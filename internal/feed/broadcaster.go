package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/impact-insoles/insole-app/internal/app"
)

const clientBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster pushes the latest snapshot to every websocket client, at most
// once per throttle interval
type Broadcaster struct {
	logger   *log.Logger
	throttle time.Duration

	mu      sync.RWMutex
	clients map[*client]bool

	flushMu    sync.Mutex
	pending    *app.Snapshot
	flushTimer *time.Timer
}

// NewBroadcaster creates a broadcaster; a zero throttle sends every snapshot
func NewBroadcaster(logger *log.Logger, throttle time.Duration) *Broadcaster {
	if logger == nil {
		panic("Broadcaster: logger cannot be nil")
	}
	return &Broadcaster{
		logger:   logger,
		throttle: throttle,
		clients:  make(map[*client]bool),
	}
}

// AddClient registers conn and sends it current straight away
func (b *Broadcaster) AddClient(conn *websocket.Conn, current app.Snapshot) *client {
	c := newClient(conn)

	data, err := json.Marshal(current)
	if err != nil {
		b.logger.Printf("Broadcaster: marshal error: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = true
	if data != nil {
		c.send <- data
	}
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Queue records s as the snapshot to send at the next flush. Intermediate
// snapshots within one throttle interval are coalesced.
func (b *Broadcaster) Queue(s app.Snapshot) {
	if b.throttle <= 0 {
		b.broadcast(s)
		return
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pending = &s
	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	pending := b.pending
	b.pending = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if pending != nil {
		b.broadcast(*pending)
	}
}

func (b *Broadcaster) broadcast(s app.Snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		b.logger.Printf("Broadcaster: marshal error: %v", err)
		return
	}

	// send under the read lock so no client channel is closed mid-send
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Printf("Broadcaster: client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// ClientCount returns the number of connected websocket clients
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and stops a pending flush
func (b *Broadcaster) Close() {
	b.flushMu.Lock()
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
	b.pending = nil
	b.flushMu.Unlock()

	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}
