package widget

import (
	"context"
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

// Options tune the widget's timers. Zero values pick the defaults.
type Options struct {
	PollInterval time.Duration
	Heartbeat    time.Duration
	// OnChange fires after any transcript or presence mutation so the owner
	// can re-render. Optional.
	OnChange func()
}

// Widget is the visitor-side view model: it owns the transcript, the
// realtime subscription, the polling backstop and the presence loop for one
// session, and tears all of them down on Stop. Nothing here is global; each
// widget instance is constructed for a view's lifetime.
type Widget struct {
	sessionID string
	gw        *gateway.Client
	opts      Options

	mu       sync.Mutex
	tr       *transcript.Transcript
	observer *presence.Observer

	sub    *realtime.Subscription
	cancel context.CancelFunc

	openCh chan struct{}
}

func New(gw *gateway.Client, sessionID string, opts Options) *Widget {
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = presence.DefaultHeartbeat
	}
	return &Widget{
		sessionID: sessionID,
		gw:        gw,
		opts:      opts,
		tr:        transcript.New(transcript.AuthorUser),
		observer:  presence.NewObserver(opts.Heartbeat),
		openCh:    make(chan struct{}, 1),
	}
}

// Start brings up the realtime subscription, the polling backstop and the
// presence heartbeat. A failed websocket dial degrades to polling only; the
// transcript stays correct, just slower.
func (w *Widget) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	sub, err := realtime.Subscribe(ctx, w.gw.WSURL(w.sessionID), w.sessionID, realtime.Handlers{
		OnInsert:   w.applyRemote,
		OnPresence: w.observePresence,
	})
	if err != nil {
		slog.Warn("realtime subscribe failed, polling only", "err", err)
	} else {
		w.sub = sub
		b := presence.NewBroadcaster(sub, "user", w.sessionID, w.opts.Heartbeat)
		go b.Run(ctx)
	}

	p := poller.New(w.opts.PollInterval, w.poll)
	go p.Run(ctx)
}

// Stop releases the subscription and all timers deterministically.
func (w *Widget) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.sub != nil {
		w.sub.Close()
	}
}

// Send appends optimistically, then reconciles against the store's answer.
// A ConnectivityError or RejectedError marks the record failed and is also
// returned so the caller can surface a non-blocking warning.
func (w *Widget) Send(ctx context.Context, text string) error {
	w.mu.Lock()
	local := w.tr.ApplyOptimistic(w.sessionID, text)
	w.mu.Unlock()
	w.changed()

	row, err := w.gw.Insert(ctx, w.sessionID, text, transcript.AuthorUser)
	if err != nil {
		w.mu.Lock()
		w.tr.MarkFailed(local.ID, failReason(err))
		w.mu.Unlock()
		w.changed()
		return err
	}

	w.mu.Lock()
	w.tr.ApplyRemote(row)
	w.mu.Unlock()
	w.changed()
	return nil
}

// Retry re-submits a failed record under a fresh provisional id.
func (w *Widget) Retry(ctx context.Context, localID string) error {
	w.mu.Lock()
	var text string
	for _, m := range w.tr.Messages() {
		if m.ID == localID && m.State == transcript.StateFailed {
			text = m.Text
			break
		}
	}
	if text == "" {
		w.mu.Unlock()
		return errors.New("no failed message with that id")
	}
	w.tr.Remove(localID)
	w.mu.Unlock()

	return w.Send(ctx, text)
}

// Messages returns the ordered transcript snapshot.
func (w *Widget) Messages() []transcript.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tr.Messages()
}

func (w *Widget) SessionID() string { return w.sessionID }

// AdminOnline reports the support side's presence as currently observed.
func (w *Widget) AdminOnline() bool {
	return w.observer.Online("admin")
}

// Open requests that the chat panel be shown. This is the explicit command
// channel that replaces the page-global "open the chat" event: callers hold
// a reference to the widget and the UI loop drains OpenRequests.
func (w *Widget) Open() {
	select {
	case w.openCh <- struct{}{}:
	default:
	}
}

func (w *Widget) OpenRequests() <-chan struct{} { return w.openCh }

func (w *Widget) applyRemote(r transcript.Remote) {
	w.mu.Lock()
	w.tr.ApplyRemote(r)
	w.mu.Unlock()
	w.changed()
}

func (w *Widget) observePresence(sig realtime.Signal) {
	if sig.Role != "admin" {
		return
	}
	w.observer.Observe(sig)
	w.changed()
}

// poll re-fetches the whole conversation and merges it. Idempotent by the
// transcript's dedup, so overlap with realtime delivery is harmless.
func (w *Widget) poll(ctx context.Context) {
	rows, err := w.gw.Conversation(ctx, w.sessionID)
	if err != nil {
		return
	}
	w.mu.Lock()
	for _, r := range rows {
		w.tr.ApplyRemote(r)
	}
	w.mu.Unlock()
	w.changed()
}

func (w *Widget) changed() {
	if w.opts.OnChange != nil {
		w.opts.OnChange()
	}
}

func failReason(err error) string {
	var rej *gateway.RejectedError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return "store unreachable"
}
