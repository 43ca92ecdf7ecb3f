package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lasedigital/lasechat/internal/transcript"
	"github.com/lasedigital/lasechat/internal/utils"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// ScopeAll subscribes to inserts across every session (admin side).
const ScopeAll = "all"

// Signal is an ephemeral presence announcement.
type Signal struct {
	Role      string
	Status    string
	SessionID string
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Handlers receive pushed events. Either may be nil. Callbacks run on the
// subscription's read goroutine; keep them short and hand off to the owning
// view model.
type Handlers struct {
	OnInsert   func(transcript.Remote)
	OnPresence func(Signal)
}

// wireEvent mirrors the server's event payload.
type wireEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

// Subscription is one live push channel. Close tears it down promptly; events
// that race a Close are discarded, never delivered to a stale scope.
type Subscription struct {
	conn  *websocket.Conn
	scope string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe dials the push channel for scope and starts delivering events.
// Delivery is best effort: transient network loss drops notifications and the
// polling backstop repairs the gap.
func Subscribe(ctx context.Context, wsURL, scope string, h Handlers) (*Subscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		conn:  conn,
		scope: scope,
		done:  make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	go s.readPump(h)
	return s, nil
}

// Announce pushes a presence frame up the socket for the hub to rebroadcast.
// Fire and forget; an error just means the signal was lost.
func (s *Subscription) Announce(sig Signal) error {
	payload, err := json.Marshal(wireEvent{
		Type:      "presence",
		Role:      sig.Role,
		Status:    sig.Status,
		SessionID: sig.SessionID,
	})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

// Done is closed once the subscription has shut down (either side).
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) readPump(h Handlers) {
	defer s.Close()
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		select {
		case <-s.done:
			// torn down while a frame was in flight; discard silently
			return
		default:
		}

		var ev wireEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message":
			// scope guard: the hub already filters, but a scope change can
			// race an in-flight frame
			if s.scope != ScopeAll && ev.SessionID != s.scope {
				continue
			}
			if h.OnInsert != nil {
				h.OnInsert(normalize(ev))
			}
		case "presence":
			if h.OnPresence != nil {
				h.OnPresence(Signal{Role: ev.Role, Status: ev.Status, SessionID: ev.SessionID})
			}
		}
	}
}

func normalize(ev wireEvent) transcript.Remote {
	out := transcript.Remote{
		ID:        strconv.FormatInt(ev.MessageID, 10),
		SessionID: ev.SessionID,
		Text:      ev.Text,
		CreatedAt: utils.ParseTime(ev.CreatedAt),
	}
	if ev.Sender != "" {
		out.Author = transcript.Author(ev.Sender)
	} else {
		out.Inferred = true
	}
	return out
}
