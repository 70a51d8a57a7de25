// Package sqlite provides embedded-SQLite implementations of the device-local
// persisted collections: inspection records, compressed media, and the sync
// outbox. The database runs in WAL mode so the coordinator can keep writing
// while the sync worker drains the queue.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/migrations"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection and exposes the persisted collections.
type DB struct {
	conn *sql.DB
	path string

	// Collections (initialized in Open)
	InspectionStore fieldsync.InspectionStore
	SyncQueue       fieldsync.SyncQueue
}

// Options configures the queue's retry behavior.
type Options struct {
	// MaxRetries is the per-entry retry budget before dead-lettering.
	MaxRetries int

	// BackoffBase is the unit delay; delay before attempt n is
	// BackoffBase * 2^(n-1).
	BackoffBase time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		BackoffBase: time.Second,
		Logger:      slog.Default(),
	}
}

// Open creates (or reuses) the database at path, applies pragmas, runs the
// embedded migrations, and initializes the collections.
//
// The caller must call Close when done.
func Open(path string, opts Options) (*DB, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// WAL for concurrent reads while the coordinator writes.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, path: path}
	db.InspectionStore = &InspectionStore{db: db}
	db.SyncQueue = &SyncQueue{db: db, opts: opts}
	return db, nil
}

// NewMediaStore creates the media collection bound to this database. The
// selector supplies the compression parameters in effect at each capture.
func (db *DB) NewMediaStore(compressor fieldsync.Compressor, selector fieldsync.CompressionSelector, logger *slog.Logger) fieldsync.MediaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaStore{db: db, compressor: compressor, selector: selector, logger: logger}
}

// migrate applies the embedded goose migrations.
func migrate(conn *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(conn, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Conn returns the underlying connection.
// Use sparingly - prefer the collection interfaces.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	_, _ = db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// now returns the wall clock in unix milliseconds, the timestamp unit used
// throughout the schema.
func now() int64 {
	return time.Now().UnixMilli()
}

// execOne runs a statement and converts zero affected rows to ENOTFOUND.
func execOne(ctx context.Context, conn *sql.DB, notFound string, query string, args ...any) error {
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fieldsync.Internal("executing statement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fieldsync.Internal("reading affected rows", err)
	}
	if n == 0 {
		return fieldsync.NotFound("%s", notFound)
	}
	return nil
}
