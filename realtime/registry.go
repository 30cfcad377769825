package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/internal/metrics"
)

// Registry tracks every open realtime connection and runs the liveness
// sweep. It is an explicit constructed instance with a start/drain lifecycle,
// not ambient module state.
type Registry struct {
	interval time.Duration
	timeout  time.Duration

	mu    sync.RWMutex
	conns map[string]*Connection

	sweepDone chan struct{}
	stopOnce  sync.Once
}

// NewRegistry creates a Registry. The timeout must be at least twice the
// interval; config validation enforces that upstream.
func NewRegistry(interval, timeout time.Duration) *Registry {
	return &Registry{
		interval:  interval,
		timeout:   timeout,
		conns:     make(map[string]*Connection),
		sweepDone: make(chan struct{}),
	}
}

// Start launches the liveness sweep. Every interval each tracked connection
// is pinged; the same pass removes connections whose channel is closed or
// whose last pong is older than the timeout.
func (r *Registry) Start() {
	go r.sweepLoop()
}

// Shutdown drains the registry: the sweep stops and every connection is
// closed and removed.
func (r *Registry) Shutdown(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.sweepDone) })

	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
		metrics.OpenConnectionsGauge.Dec()
	}
	log.Ctx(ctx).Info().Int("closed", len(conns)).Msg("realtime registry drained")
}

// Add tracks a freshly authenticated connection.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()
	metrics.OpenConnectionsGauge.Inc()
}

// Remove untracks and closes a connection. Safe to call repeatedly.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	conn, ok := r.conns[connectionID]
	if ok {
		delete(r.conns, connectionID)
	}
	r.mu.Unlock()

	if ok {
		conn.Close()
		metrics.OpenConnectionsGauge.Dec()
	}
}

// Get returns a tracked connection, or nil.
func (r *Registry) Get(connectionID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connectionID]
}

// Count returns the number of tracked connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Send delivers one frame to one open connection. A closed or backlogged
// target is logged, torn down and reported as an error; reconnection is the
// caller's concern.
func (r *Registry) Send(connectionID string, frame Frame) error {
	conn := r.Get(connectionID)
	if conn == nil {
		return fmt.Errorf("connection %s not tracked", connectionID)
	}
	if !conn.TrySend(frame) {
		log.Warn().Str("connection_id", connectionID).Str("frame", string(frame.Type)).
			Msg("send to closed or saturated connection, removing")
		r.Remove(connectionID)
		return fmt.Errorf("connection %s unavailable", connectionID)
	}
	return nil
}

// Broadcast delivers a frame to every open connection, best-effort. Closed
// connections are skipped without failing the operation; partial delivery is
// expected, not an error.
func (r *Registry) Broadcast(frame Frame) (attempted, delivered int) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		attempted++
		if c.TrySend(frame) {
			delivered++
		}
	}
	metrics.BroadcastsTotal.Inc()
	return attempted, delivered
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.sweepDone:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep pings every tracked connection and removes the unresponsive ones.
// Ping-send failure is treated the same as a liveness timeout.
func (r *Registry) sweep(now time.Time) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		switch {
		case c.Closed():
			r.Remove(c.ID)
			metrics.SweepRemovalsTotal.Inc()
		case now.Sub(c.LastPing()) > r.timeout:
			log.Info().Str("connection_id", c.ID).Time("last_ping", c.LastPing()).
				Msg("liveness timeout, removing connection")
			r.Remove(c.ID)
			metrics.SweepRemovalsTotal.Inc()
		case !c.TrySend(NewPing(uuid.NewString())):
			log.Info().Str("connection_id", c.ID).Msg("ping send failed, removing connection")
			r.Remove(c.ID)
			metrics.SweepRemovalsTotal.Inc()
		}
	}
}
