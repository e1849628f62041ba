package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Database owns the history connection. Schema migrations run on a
// separate short-lived connection when it is opened.
//
//	database, err := db.Open(layout.DatabasePath(), logger)
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
type Database struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	mu     sync.RWMutex
}

// Open creates the file and its directory if needed, brings the schema up
// to date and returns a ready Database.
func Open(path string, logger *zap.Logger) (*Database, error) {
	return OpenWithConfig(DefaultConnectionConfig(path), logger)
}

// OpenWithConfig is Open with custom connection settings.
func OpenWithConfig(config ConnectionConfig, logger *zap.Logger) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(config.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	if err := MigrateUpFromPath(config.Path); err != nil {
		return nil, err
	}

	conn, err := NewSQLiteConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	logger.Info("history database ready",
		zap.String("path", config.Path),
		zap.Int("schema_version", SchemaVersion))

	return &Database{db: conn, path: config.Path, logger: logger}, nil
}

// DB returns the underlying connection.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. Calling it twice is safe.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.db = nil
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return errClosed
	}
	return d.db.PingContext(ctx)
}

// ExecContext runs a statement that returns no rows.
func (d *Database) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errClosed
	}
	return d.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query that returns rows.
func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errClosed
	}
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
func (d *Database) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, errClosed
	}
	return d.db.QueryRowContext(ctx, query, args...), nil
}
