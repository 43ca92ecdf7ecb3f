// Package postgres opens the shared message database used when the
// server runs behind a managed Postgres instance.
package postgres

import (
	"database/sql"

	_ "github.com/lib/pq"
)

type Postgres struct {
	Db *sql.DB
}

func New(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// Fail at boot rather than on the first message.
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{Db: db}, nil
}
