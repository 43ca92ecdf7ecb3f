package hub

import (
	"time"

	"github.com/lasedigital/lasechat/internal/store"
)

const (
	EventMessage  = "message"
	EventPresence = "presence"
)

// Event is the wire payload pushed to websocket subscribers. Message events
// notify a row insert; presence events are ephemeral rebroadcasts and never
// touch the store.
type Event struct {
	Type string `json:"type"`

	MessageID int64  `json:"message_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Sender    string `json:"sender,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`

	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// InsertEvent builds the notification for a freshly persisted row.
func InsertEvent(r store.Row) Event {
	ev := Event{
		Type:      EventMessage,
		MessageID: r.ID,
		SessionID: r.SessionID,
		Text:      r.Text,
		CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.Sender.Valid {
		ev.Sender = r.Sender.String
	}
	return ev
}
