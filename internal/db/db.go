package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection opened by the pool
var pragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
}

// DB wraps the sql.DB for connection management
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New creates a new DB connection
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// in-memory databases live as long as one connection does
	if isMemory(dsn) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	logger.Debug("database opened", slog.String("dsn", dsn))

	return &DB{conn: conn, logger: logger}, nil
}

// Close closes the DB connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is usable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Exec executes a query
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// QueryRows executes a query that returns rows
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, opts)
}

// GetConn returns the underlying sql.DB
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(pragmas, "&")
}
