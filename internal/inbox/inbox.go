package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lasedigital/lasechat/internal/gateway"
	"github.com/lasedigital/lasechat/internal/poller"
	"github.com/lasedigital/lasechat/internal/presence"
	"github.com/lasedigital/lasechat/internal/realtime"
	"github.com/lasedigital/lasechat/internal/transcript"
)

// Options tune the inbox timers and side channels.
type Options struct {
	PollInterval time.Duration
	Heartbeat    time.Duration
	Notifier     Notifier
	OnChange     func()
}

// SessionRow is one inbox entry.
type SessionRow struct {
	SessionID    string
	LastActivity time.Time
	Unread       int
	Online       bool
}

// Inbox is the admin-side view model: the session list with unread counters,
// the transcript of the active conversation, visitor presence, and the
// global realtime subscription. One instance per dashboard lifetime.
type Inbox struct {
	gw   *gateway.Client
	opts Options

	mu       sync.Mutex
	sessions []gateway.SessionInfo
	unread   map[string]int
	counted  map[string]string // message id -> session id, pruned with the session
	active   string
	tr       *transcript.Transcript

	observer *presence.Observer

	sub    *realtime.Subscription
	cancel context.CancelFunc
}

func New(gw *gateway.Client, opts Options) *Inbox {
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = presence.DefaultHeartbeat
	}
	return &Inbox{
		gw:       gw,
		opts:     opts,
		unread:   make(map[string]int),
		counted:  make(map[string]string),
		observer: presence.NewObserver(opts.Heartbeat),
	}
}

// Login obtains the admin session cookie. Required before Delete.
func (ib *Inbox) Login(ctx context.Context, pin string) error {
	return ib.gw.Login(ctx, pin)
}

// Start subscribes to inserts across all sessions, announces admin presence
// and runs the polling backstop for the session list and active conversation.
func (ib *Inbox) Start(ctx context.Context) {
	ctx, ib.cancel = context.WithCancel(ctx)

	sub, err := realtime.Subscribe(ctx, ib.gw.WSURL(realtime.ScopeAll), realtime.ScopeAll, realtime.Handlers{
		OnInsert:   ib.handleInsert,
		OnPresence: ib.handlePresence,
	})
	if err != nil {
		slog.Warn("realtime subscribe failed, polling only", "err", err)
	} else {
		ib.sub = sub
		b := presence.NewBroadcaster(sub, "admin", "", ib.opts.Heartbeat)
		go b.Run(ctx)
	}

	p := poller.New(ib.opts.PollInterval, ib.poll)
	go p.Run(ctx)
}

// Stop tears down the subscription and every timer.
func (ib *Inbox) Stop() {
	if ib.cancel != nil {
		ib.cancel()
	}
	if ib.sub != nil {
		ib.sub.Close()
	}
}

// Open makes sessionID the active conversation: resets its unread counter,
// swaps in a fresh transcript and loads history. Events for other sessions
// keep feeding counters only.
func (ib *Inbox) Open(ctx context.Context, sessionID string) error {
	ib.mu.Lock()
	ib.active = sessionID
	ib.unread[sessionID] = 0
	ib.pruneCounted(sessionID)
	ib.tr = transcript.New(transcript.AuthorAdmin)
	ib.mu.Unlock()
	ib.changed()

	rows, err := ib.gw.Conversation(ctx, sessionID)
	if err != nil {
		return err
	}
	ib.mu.Lock()
	// guard against a session switch racing the fetch
	if ib.active == sessionID {
		for _, r := range rows {
			ib.tr.ApplyRemote(r)
		}
	}
	ib.mu.Unlock()
	ib.changed()
	return nil
}

// Reply sends an admin message to the active conversation, optimistic like
// the widget path.
func (ib *Inbox) Reply(ctx context.Context, text string) error {
	ib.mu.Lock()
	sid := ib.active
	if sid == "" {
		ib.mu.Unlock()
		return errors.New("no active session")
	}
	local := ib.tr.ApplyOptimistic(sid, text)
	ib.mu.Unlock()
	ib.changed()

	row, err := ib.gw.Insert(ctx, sid, text, transcript.AuthorAdmin)
	if err != nil {
		ib.mu.Lock()
		if ib.active == sid {
			ib.tr.MarkFailed(local.ID, err.Error())
		}
		ib.mu.Unlock()
		ib.changed()
		return err
	}

	ib.mu.Lock()
	if ib.active == sid {
		ib.tr.ApplyRemote(row)
	}
	ib.mu.Unlock()
	ib.changed()
	return nil
}

// SendActionCard posts a structured card into the active conversation, e.g.
// the WhatsApp handoff.
func (ib *Inbox) SendActionCard(ctx context.Context, action, label, url string) error {
	text, err := transcript.NewActionCard(action, label, url)
	if err != nil {
		return err
	}
	return ib.Reply(ctx, text)
}

// Delete removes the active-or-named conversation. The gateway must hold a
// valid admin cookie (Login); otherwise gateway.ErrUnauthorized comes back
// and nothing was removed. Confirmation is the caller's job.
func (ib *Inbox) Delete(ctx context.Context, sessionID string) error {
	if err := ib.gw.DeleteConversation(ctx, sessionID); err != nil {
		return err
	}

	ib.mu.Lock()
	for i, s := range ib.sessions {
		if s.SessionID == sessionID {
			ib.sessions = append(ib.sessions[:i], ib.sessions[i+1:]...)
			break
		}
	}
	delete(ib.unread, sessionID)
	ib.pruneCounted(sessionID)
	if ib.active == sessionID {
		ib.active = ""
		ib.tr = nil
	}
	ib.mu.Unlock()
	ib.changed()
	return nil
}

// Export serializes the active conversation as JSON.
func (ib *Inbox) Export() ([]byte, error) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.tr == nil {
		return nil, errors.New("no active session")
	}
	return json.MarshalIndent(ib.tr.Messages(), "", "  ")
}

// Sessions returns the inbox rows, newest activity first.
func (ib *Inbox) Sessions() []SessionRow {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	out := make([]SessionRow, 0, len(ib.sessions))
	for _, s := range ib.sessions {
		out = append(out, SessionRow{
			SessionID:    s.SessionID,
			LastActivity: s.LastActivity,
			Unread:       ib.unread[s.SessionID],
			Online:       ib.observer.Online(s.SessionID),
		})
	}
	return out
}

// Messages returns the active conversation's transcript snapshot.
func (ib *Inbox) Messages() []transcript.Message {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.tr == nil {
		return nil
	}
	return ib.tr.Messages()
}

func (ib *Inbox) Active() string {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.active
}

// Unread reports the counter for one session.
func (ib *Inbox) Unread(sessionID string) int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.unread[sessionID]
}

// handleInsert is the global push path: feed the active transcript, bump
// unread for everything else, and nudge the OS notification side channel.
func (ib *Inbox) handleInsert(r transcript.Remote) {
	fromUser := r.Author == transcript.AuthorUser || r.Inferred

	ib.mu.Lock()
	ib.touchSession(r.SessionID, r.CreatedAt)
	if ib.active == r.SessionID && ib.tr != nil {
		ib.tr.ApplyRemote(r)
	}

	notify := false
	_, seen := ib.counted[r.ID]
	if fromUser && r.SessionID != ib.active && !seen {
		// counted guards the at-least-once push channel from double-bumping
		ib.counted[r.ID] = r.SessionID
		ib.unread[r.SessionID]++
		notify = true
	}
	ib.mu.Unlock()
	ib.changed()

	if notify && ib.opts.Notifier != nil {
		// fire and forget; the user may have denied the permission
		_ = ib.opts.Notifier.Notify("New user message", truncateBody(r.Text))
	}
}

func (ib *Inbox) handlePresence(sig realtime.Signal) {
	if sig.Role != "user" {
		return
	}
	ib.observer.Observe(sig)
	ib.changed()
}

// poll is the backstop: refresh the session list and re-merge the active
// conversation.
func (ib *Inbox) poll(ctx context.Context) {
	if infos, err := ib.gw.Sessions(ctx); err == nil {
		ib.mu.Lock()
		ib.sessions = infos
		ib.mu.Unlock()
		ib.changed()
	}

	ib.mu.Lock()
	sid := ib.active
	ib.mu.Unlock()
	if sid == "" {
		return
	}

	rows, err := ib.gw.Conversation(ctx, sid)
	if err != nil {
		return
	}
	ib.mu.Lock()
	if ib.active == sid && ib.tr != nil {
		for _, r := range rows {
			ib.tr.ApplyRemote(r)
		}
	}
	ib.mu.Unlock()
	ib.changed()
}

// truncateBody caps the notification body at 120 runes, never splitting a
// multi-byte character.
func truncateBody(s string) string {
	runes := []rune(s)
	if len(runes) > 120 {
		return string(runes[:120])
	}
	return s
}

// pruneCounted drops the dedup entries for one session so the map does not
// grow for the dashboard's lifetime. Caller holds the lock.
func (ib *Inbox) pruneCounted(sessionID string) {
	for id, sid := range ib.counted {
		if sid == sessionID {
			delete(ib.counted, id)
		}
	}
}

// touchSession keeps the local list coherent between poll ticks. Caller
// holds the lock.
func (ib *Inbox) touchSession(sessionID string, at time.Time) {
	for i := range ib.sessions {
		if ib.sessions[i].SessionID == sessionID {
			if at.After(ib.sessions[i].LastActivity) {
				ib.sessions[i].LastActivity = at
			}
			return
		}
	}
	ib.sessions = append([]gateway.SessionInfo{{SessionID: sessionID, LastActivity: at}}, ib.sessions...)
}

func (ib *Inbox) changed() {
	if ib.opts.OnChange != nil {
		ib.opts.OnChange()
	}
}
