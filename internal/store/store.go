package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lasedigital/lasechat/internal/utils"
)

// scanTime absorbs the drivers' differing timestamp representations: sqlite
// hands back the stored string, lib/pq a time.Time.
type scanTime struct {
	t time.Time
}

func (s *scanTime) Scan(v any) error {
	switch val := v.(type) {
	case time.Time:
		s.t = val.UTC()
	case []byte:
		s.t = utils.ParseTime(string(val))
	case string:
		s.t = utils.ParseTime(val)
	case nil:
		s.t = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into timestamp", v)
	}
	return nil
}

// Row is one persisted message. Sender is nullable: rows written before the
// column existed carry no role marker and clients infer authorship.
type Row struct {
	ID        int64
	SessionID string
	Text      string
	Sender    sql.NullString
	CreatedAt time.Time
}

// SessionInfo is one distinct conversation key, newest activity first.
type SessionInfo struct {
	SessionID    string
	LastActivity time.Time
}

// Store wraps the messages table for both backends. The postgres flag switches
// placeholder style and insert-returning support.
type Store struct {
	db *sql.DB
	pg bool
}

func New(db *sql.DB, postgres bool) *Store {
	return &Store{db: db, pg: postgres}
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if !s.pg {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Insert appends one row and returns it with the server-assigned id and
// timestamp.
func (s *Store) Insert(sessionID, text, sender string) (Row, error) {
	if s.pg {
		var r Row
		var at scanTime
		err := s.db.QueryRow(
			s.rebind(`INSERT INTO messages (session_id, text, sender) VALUES (?, ?, ?) RETURNING id, created_at`),
			sessionID, text, sender,
		).Scan(&r.ID, &at)
		if err != nil {
			return Row{}, err
		}
		r.SessionID = sessionID
		r.Text = text
		r.Sender = sql.NullString{String: sender, Valid: true}
		r.CreatedAt = at.t
		return r, nil
	}

	res, err := s.db.Exec(`INSERT INTO messages (session_id, text, sender) VALUES (?, ?, ?)`,
		sessionID, text, sender)
	if err != nil {
		return Row{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Row{}, err
	}
	var at scanTime
	if err := s.db.QueryRow(`SELECT created_at FROM messages WHERE id=?`, id).Scan(&at); err != nil {
		return Row{}, err
	}
	return Row{
		ID:        id,
		SessionID: sessionID,
		Text:      text,
		Sender:    sql.NullString{String: sender, Valid: true},
		CreatedAt: at.t,
	}, nil
}

// BySession returns the full conversation ascending by timestamp. A session
// with no messages yields an empty slice, not an error.
func (s *Store) BySession(sessionID string) ([]Row, error) {
	rows, err := s.db.Query(s.rebind(`
		SELECT id, session_id, text, sender, created_at
		FROM messages
		WHERE session_id=?
		ORDER BY created_at ASC, id ASC`), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows)
}

// Sessions returns distinct session ids by most recent activity, capped at
// limit so the admin poll never implies a full-table contract.
func (s *Store) Sessions(limit int) ([]SessionInfo, error) {
	rows, err := s.db.Query(s.rebind(`
		SELECT session_id, MAX(created_at) AS last_at
		FROM messages
		GROUP BY session_id
		ORDER BY last_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var at scanTime
		if err := rows.Scan(&info.SessionID, &at); err != nil {
			return nil, err
		}
		info.LastActivity = at.t
		list = append(list, info)
	}
	return list, rows.Err()
}

// DeleteSession removes every row for one conversation and reports how many
// rows went away.
func (s *Store) DeleteSession(sessionID string) (int64, error) {
	res, err := s.db.Exec(s.rebind(`DELETE FROM messages WHERE session_id=?`), sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var list []Row
	for rows.Next() {
		var r Row
		var at scanTime
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Text, &r.Sender, &at); err != nil {
			return nil, err
		}
		r.CreatedAt = at.t
		list = append(list, r)
	}
	return list, rows.Err()
}
