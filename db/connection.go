// Package db stores the analysis history in a local SQLite file.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// ConnectionConfig describes how the history file is opened.
type ConnectionConfig struct {
	Path string

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration

	// MaxOpenConns caps the pool. SQLite allows one writer, so the history
	// store keeps this at 1 and queues writes through AsyncWriter.
	MaxOpenConns int
}

// DefaultConnectionConfig returns WAL mode, one connection and a 5 second
// busy timeout.
func DefaultConnectionConfig(path string) ConnectionConfig {
	return ConnectionConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}
}

// dsn encodes the pragmas in the connection string so the driver applies
// them to every connection it opens, not only the first.
func (c ConnectionConfig) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	return "file:" + c.Path + "?" + q.Encode()
}

// NewSQLiteConnection opens the history file and checks that WAL is active.
func NewSQLiteConnection(config ConnectionConfig) (*sql.DB, error) {
	if config.Path == "" {
		return nil, errors.New("database path is required")
	}

	conn, err := sql.Open("sqlite", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Path, err)
	}
	conn.SetMaxOpenConns(max(config.MaxOpenConns, 1))
	conn.SetMaxIdleConns(max(config.MaxOpenConns, 1))

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", config.Path, err)
	}
	if mode != "wal" {
		conn.Close()
		return nil, fmt.Errorf("open %s: journal mode is %q, want wal", config.Path, mode)
	}
	return conn, nil
}
