package transcript

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// matchWindow bounds how far apart a local optimistic timestamp and the
// server's authoritative timestamp may be and still describe the same send.
const matchWindow = 2 * time.Minute

// Transcript is the ordered, deduplicated-by-id message list for one
// conversation. It is owned by a single view model and is not safe for
// concurrent use; callers serialize access (the view model's event loop).
//
// Merging is idempotent: the same server row applied any number of times,
// in any interleaving with the optimistic path, yields the same list.
type Transcript struct {
	self Author
	msgs []Message
	ids  map[string]bool
	now  func() time.Time
}

func New(self Author) *Transcript {
	return &Transcript{
		self: self,
		ids:  make(map[string]bool),
		now:  time.Now,
	}
}

// ApplyOptimistic appends a provisional record for a send that has not yet
// been confirmed by the store. The returned message carries the provisional id.
func (t *Transcript) ApplyOptimistic(sessionID, text string) Message {
	m := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Text:      text,
		Author:    t.self,
		CreatedAt: t.now(),
		State:     StatePending,
	}
	t.msgs = append(t.msgs, m)
	t.ids[m.ID] = true
	t.resort()
	return m
}

// ApplyRemote merges an authoritative server row. Rows already present are
// ignored; rows describing an unconfirmed local send (pending or failed)
// replace that record in place; everything else is inserted in timestamp order.
func (t *Transcript) ApplyRemote(r Remote) {
	if t.ids[r.ID] {
		return
	}

	if i, ok := t.matchPending(r); ok {
		old := t.msgs[i].ID
		t.msgs[i] = Message{
			ID:        r.ID,
			SessionID: r.SessionID,
			Text:      r.Text,
			Author:    t.self,
			CreatedAt: r.CreatedAt,
			State:     StateConfirmed,
		}
		delete(t.ids, old)
		t.ids[r.ID] = true
		t.resort()
		return
	}

	author := r.Author
	if r.Inferred {
		// Legacy row with no sender marker and no pending local match:
		// best effort, attribute it to the other party.
		author = t.self.Other()
	}
	t.msgs = append(t.msgs, Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Text:      r.Text,
		Author:    author,
		CreatedAt: r.CreatedAt,
		State:     StateConfirmed,
	})
	t.ids[r.ID] = true
	t.resort()
}

// MarkFailed flags a pending record whose insert did not succeed. The record
// stays in the transcript so the sender gets a retry affordance.
func (t *Transcript) MarkFailed(localID, reason string) {
	for i := range t.msgs {
		if t.msgs[i].ID == localID && t.msgs[i].State == StatePending {
			t.msgs[i].State = StateFailed
			t.msgs[i].FailReason = reason
			return
		}
	}
}

// Remove drops an unconfirmed record, used when a failed send is re-submitted
// under a fresh provisional id. Confirmed rows are authoritative and stay.
func (t *Transcript) Remove(localID string) {
	for i := range t.msgs {
		if t.msgs[i].ID == localID && t.msgs[i].State != StateConfirmed {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			delete(t.ids, localID)
			return
		}
	}
}

// Messages returns a copy of the current list, ascending by timestamp.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) Len() int { return len(t.msgs) }

// matchPending finds an unresolved optimistic record describing the same send
// as r: identical text, compatible author, timestamps within the match window.
// Failed records match too: an insert can commit server-side while the
// response is lost, and the authoritative row then arrives via push or poll.
func (t *Transcript) matchPending(r Remote) (int, bool) {
	for i := range t.msgs {
		m := t.msgs[i]
		if m.State == StateConfirmed || m.Text != r.Text {
			continue
		}
		if !r.Inferred && r.Author != m.Author {
			continue
		}
		d := m.CreatedAt.Sub(r.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= matchWindow {
			return i, true
		}
	}
	return 0, false
}

// resort re-derives timestamp order after a mutation. The sort is stable so
// equal timestamps keep arrival order.
func (t *Transcript) resort() {
	sort.SliceStable(t.msgs, func(i, j int) bool {
		return t.msgs[i].CreatedAt.Before(t.msgs[j].CreatedAt)
	})
}
