package ws

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pcg-live/monitor/internal/session"
)

var ErrTooManyConnections = errors.New("too many websocket connections")

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, b *Broadcaster) *client {
	return &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Broadcaster fans session snapshots and events out to websocket clients.
// Snapshots are coalesced per session and flushed at most once per throttle
// interval; a full snapshot of the store goes out every snapshotInterval so
// clients that dropped a delta converge.
//
// Publish and Notify never block, so the broadcaster can be handed to a
// session as its Sink and Notifier.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int

	store    *session.Store
	text     func(key string) string
	logger   *zap.Logger
	throttle time.Duration

	flushMu    sync.Mutex
	pending    map[string]*session.Snapshot
	flushTimer *time.Timer

	snapshotTicker *time.Ticker
	done           chan struct{}
	stopOnce       sync.Once
}

// NewBroadcaster starts the periodic snapshot loop. A maxConns of zero means
// unlimited. text resolves notification keys; nil leaves keys unresolved.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxConns int, text func(string) string, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = func(key string) string { return key }
	}
	b := &Broadcaster{
		clients:        make(map[*client]bool),
		maxConns:       maxConns,
		store:          store,
		text:           text,
		logger:         logger.Named("broadcast"),
		throttle:       throttle,
		pending:        make(map[string]*session.Snapshot),
		snapshotTicker: time.NewTicker(snapshotInterval),
		done:           make(chan struct{}),
	}
	go b.snapshotLoop()
	return b
}

// AddClient registers conn, starts its write pump and queues the current
// snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := newClient(conn, b)

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	data, err := json.Marshal(WSMessage{
		Type:    MsgSnapshot,
		Payload: SnapshotPayload{Sessions: b.store.GetAll()},
	})
	if err == nil && !c.trySend(data) {
		b.logger.Debug("initial snapshot dropped")
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	b.mu.Unlock()
	if ok {
		c.close()
	}
}

// Publish records snap in the store and queues it for the next delta.
func (b *Broadcaster) Publish(snap *session.Snapshot) {
	b.store.Update(snap)
	b.QueueUpdate(snap)
}

// QueueUpdate schedules snap for the next flush, replacing any older
// pending snapshot of the same session.
func (b *Broadcaster) QueueUpdate(snap *session.Snapshot) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if old, ok := b.pending[snap.SessionID]; ok && snap.LastUpdated.Before(old.LastUpdated) {
		return
	}
	b.pending[snap.SessionID] = snap.Clone()

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// Notify broadcasts ev immediately.
func (b *Broadcaster) Notify(ev session.Event) {
	b.broadcast(WSMessage{
		Type:    MsgNotification,
		Payload: NotificationPayload{Event: ev, Message: b.text(ev.Key)},
	})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	pending := b.pending
	b.pending = make(map[string]*session.Snapshot)
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(pending) == 0 {
		return
	}
	updates := make([]*session.Snapshot, 0, len(pending))
	for _, snap := range pending {
		updates = append(updates, snap)
	}
	sortSnapshots(updates)

	b.broadcast(WSMessage{
		Type:    MsgDelta,
		Payload: DeltaPayload{Updates: updates},
	})
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			b.broadcast(WSMessage{
				Type:    MsgSnapshot,
				Payload: SnapshotPayload{Sessions: b.store.GetAll()},
			})
		}
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("broadcast marshal failed", zap.Error(err))
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			b.logger.Warn("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop ends the snapshot loop, cancels a pending flush and disconnects every
// client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		clients := b.clients
		b.clients = make(map[*client]bool)
		b.mu.Unlock()
		for c := range clients {
			c.close()
		}
	})
}

func sortSnapshots(s []*session.Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i].SessionID < s[j].SessionID })
}
