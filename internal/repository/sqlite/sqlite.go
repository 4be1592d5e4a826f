// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no CGo).
//
// ONE WRITER, ONE CONNECTION:
// SQLite allows a single writer at a time. The quota ledger depends on a
// read-check-write sequence being atomic, so the pool is capped at one
// connection: every transaction in this process runs strictly after the
// previous one commits or rolls back. Two concurrent inserts for the same
// user therefore see each other's counter update, and the second one is
// rejected once the limit is reached.
//
// Other processes (a second server, cmd/reconciler) open the same file with
// their own pool. Transactions begin with BEGIN IMMEDIATE, so the write lock
// is taken before the counter is read: a second process waits in
// busy_timeout at BEGIN instead of failing at its first write because its
// snapshot went stale.
//
// The cap also makes ":memory:" databases usable from tests: each new pooled
// connection to ":memory:" would otherwise open a fresh, empty database.
//
// RULE FOR THIS PACKAGE:
// Inside withTx, use only the *sql.Tx. Touching db.conn while a transaction
// is open would wait forever for the single connection.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and migrates it.
//
// dbPath examples:
//   - "data/snippets.db" → file-based database
//   - ":memory:"         → in-memory database, gone on Close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// journal_mode is stored in the database file, so running it once is
	// enough. The per-connection pragmas are in the DSN.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling WAL: %w", err)
	}

	db := newDB(conn)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the connection options modernc.org/sqlite reads from the
// query string. Each _pragma runs on every new connection; _txlock makes
// BeginTx issue BEGIN IMMEDIATE.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// newDB wraps an already opened pool without migrating it. Tests use it
// with sqlmock connections.
func newDB(conn *sql.DB) *DB {
	return &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies the embedded goose migrations in order. goose records the
// applied versions in goose_db_version, so this is safe on every start.
func (db *DB) migrate() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction. fn's error is returned as is (it is
// already wrapped by the caller); begin and commit failures are wrapped here.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(op+": beginning transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(op+": committing", err)
	}
	return nil
}
