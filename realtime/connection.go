package realtime

import (
	"sync"
	"time"
)

const defaultSendQueueSize = 64

// Connection represents one tracked realtime channel.
//
// Design notes:
//   - send is intentionally NOT closed by the registry to keep concurrent
//     broadcasters panic-free.
//   - done signals the writer goroutine to stop.
//   - Close is idempotent.
type Connection struct {
	ID           string
	SubjectID    string
	AgentClass   string
	AgentLabel   string
	ChannelLabel string
	RemoteAddr   string
	AttachedAt   time.Time

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
	closeHook func()

	mu       sync.Mutex
	lastPing time.Time
}

// NewConnection constructs a Connection with a bounded send queue.
func NewConnection(id, subjectID, agentClass, agentLabel, channelLabel, remoteAddr string) *Connection {
	return &Connection{
		ID:           id,
		SubjectID:    subjectID,
		AgentClass:   agentClass,
		AgentLabel:   agentLabel,
		ChannelLabel: channelLabel,
		RemoteAddr:   remoteAddr,
		AttachedAt:   time.Now(),
		send:         make(chan Frame, defaultSendQueueSize),
		done:         make(chan struct{}),
		lastPing:     time.Now(),
	}
}

// Done returns a channel closed when the connection is shutting down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// OnClose registers fn to run once when the connection shuts down. The
// transport binds it to the underlying socket so a registry removal actually
// disconnects the client. Must be set before the connection is tracked.
func (c *Connection) OnClose(fn func()) {
	c.closeHook = fn
}

// Close signals shutdown (idempotent). It does NOT close the send queue.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.closeHook != nil {
			c.closeHook()
		}
	})
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// TouchPing records liveness evidence (an inbound ping or pong).
func (c *Connection) TouchPing(now time.Time) {
	c.mu.Lock()
	c.lastPing = now
	c.mu.Unlock()
}

// LastPing returns the most recent liveness evidence.
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

// TrySend enqueues a frame without blocking. It reports false when the
// connection is closed or its queue is full; the caller decides whether that
// is fatal for the connection.
func (c *Connection) TrySend(frame Frame) bool {
	if c.Closed() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}
