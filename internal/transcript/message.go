package transcript

import "time"

type Author string

const (
	AuthorUser  Author = "user"
	AuthorAdmin Author = "admin"
)

// Other returns the opposite party.
func (a Author) Other() Author {
	if a == AuthorUser {
		return AuthorAdmin
	}
	return AuthorUser
}

// State is the delivery phase of a message as seen by this client.
type State int

const (
	// StatePending is an optimistic local append awaiting server confirmation.
	StatePending State = iota
	// StateConfirmed means the record carries the authoritative server row.
	StateConfirmed
	// StateFailed means the insert was rejected or never reached the store.
	// The record stays visible so the sender can retry.
	StateFailed
)

type Message struct {
	ID         string
	SessionID  string
	Text       string
	Author     Author
	CreatedAt  time.Time
	State      State
	FailReason string
}

// Remote is a server row normalized at the gateway boundary.
// Legacy rows predate the sender column; they arrive with Inferred set
// and no Author, and the transcript resolves authorship best-effort.
type Remote struct {
	ID        string
	SessionID string
	Text      string
	Author    Author
	Inferred  bool
	CreatedAt time.Time
}
