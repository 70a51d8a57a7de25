// Package postgres implements the remote delivery contract against a
// PostgreSQL backend, for deployments where the device has direct database
// reach. The schema mirrors the device store: one row per inspection holding
// the serialized record, updated operation by operation.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/fieldsync"
)

// DB wraps the backend connection pool and exposes the remote contract.
type DB struct {
	pool *pgxpool.Pool

	Remote fieldsync.Remote
}

// NewDB creates a new database wrapper with the remote initialized.
func NewDB(pool *pgxpool.Pool) *DB {
	db := &DB{pool: pool}
	db.Remote = &Remote{db: db}
	return db
}

// Open connects a pool and verifies reachability.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewDB(pool), nil
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer the Remote contract.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}
