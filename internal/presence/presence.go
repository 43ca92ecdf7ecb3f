package presence

import (
	"context"
	"sync"
	"time"

	"github.com/lasedigital/lasechat/internal/realtime"
)

// DefaultHeartbeat matches the dashboard's announce cadence.
const DefaultHeartbeat = 15 * time.Second

// Announcer sends one presence signal, best effort.
type Announcer interface {
	Announce(realtime.Signal) error
}

// Broadcaster heartbeats an online signal while running and fires one
// best-effort offline announce on shutdown. Losing that final announce is
// fine: observers infer offline from silence anyway.
type Broadcaster struct {
	announcer Announcer
	role      string
	sessionID string
	interval  time.Duration
}

func NewBroadcaster(a Announcer, role, sessionID string, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Broadcaster{announcer: a, role: role, sessionID: sessionID, interval: interval}
}

// Run announces until ctx is cancelled. Call it on its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	announce := func(status string) {
		_ = b.announcer.Announce(realtime.Signal{
			Role:      b.role,
			Status:    status,
			SessionID: b.sessionID,
		})
	}

	announce(realtime.StatusOnline)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			announce(realtime.StatusOnline)
		case <-ctx.Done():
			announce(realtime.StatusOffline)
			return
		}
	}
}

type entry struct {
	status string
	at     time.Time
}

// Observer tracks last-write-wins presence per party with a liveness timeout:
// a party with no signal for longer than the timeout reads as offline even if
// its offline announce was lost. Nothing is persisted; a reload starts blank.
type Observer struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	last    map[string]entry
}

// NewObserver sizes the timeout at twice the heartbeat interval.
func NewObserver(heartbeat time.Duration) *Observer {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Observer{
		timeout: 2 * heartbeat,
		now:     time.Now,
		last:    make(map[string]entry),
	}
}

// Observe records a signal. Keys are the session id for visitor signals and
// the role for the admin's global signal.
func (o *Observer) Observe(sig realtime.Signal) {
	key := sig.SessionID
	if key == "" {
		key = sig.Role
	}
	o.mu.Lock()
	o.last[key] = entry{status: sig.Status, at: o.now()}
	o.mu.Unlock()
}

// Online reports whether the party is currently considered online.
func (o *Observer) Online(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.last[key]
	if !ok || e.status != realtime.StatusOnline {
		return false
	}
	return o.now().Sub(e.at) <= o.timeout
}
