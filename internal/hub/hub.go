package hub

import (
	"encoding/json"
	"log"

	"github.com/lasedigital/lasechat/internal/store"
)

// ScopeAll subscribes to insert events for every session (admin dashboard).
const ScopeAll = "all"

// Hub fans out insert notifications to scope-filtered websocket subscribers
// and rebroadcasts ephemeral presence signals to everyone. The run loop is
// the sole owner of the client set, so no lock is needed.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	events     chan Event
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, 64),
	}
}

func (h *Hub) Run() {
	clients := make(map[*Client]bool)
	for {
		select {
		case client := <-h.register:
			clients[client] = true
		case client := <-h.unregister:
			if clients[client] {
				delete(clients, client)
				close(client.Send)
			}
		case ev := <-h.events:
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[hub] failed to marshal event: %v", err)
				continue
			}
			for client := range clients {
				if !client.wants(ev) {
					continue
				}
				select {
				case client.Send <- payload:
				default:
					// slow/broken client, drop it
					close(client.Send)
					delete(clients, client)
					log.Printf("[hub] dropped slow client scope=%s", client.Scope)
				}
			}
		}
	}
}

// BroadcastInsert notifies subscribers whose scope covers the row's session.
// Self-notifications are not suppressed; clients deduplicate.
func (h *Hub) BroadcastInsert(r store.Row) {
	h.events <- InsertEvent(r)
}

// BroadcastPresence rebroadcasts an ephemeral presence signal to every
// connected client. Nothing is persisted.
func (h *Hub) BroadcastPresence(ev Event) {
	ev.Type = EventPresence
	h.events <- ev
}

// wants reports whether this client's scope covers the event. Presence is a
// single broadcast channel shared by all subscribers.
func (c *Client) wants(ev Event) bool {
	if ev.Type == EventPresence {
		return true
	}
	return c.Scope == ScopeAll || c.Scope == ev.SessionID
}
