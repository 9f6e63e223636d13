package services

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// reminderLeaseKey namespaces this service's advisory lock.
const reminderLeaseKey = 0x6d75_7461_6261_6168 // "mutabaah"

// PgTickLease is a short-lived lease backed by a Postgres advisory lock. The
// lock lives on a dedicated pooled connection and is released with it, so a
// crashed holder frees the lease as soon as its connection dies.
type PgTickLease struct {
	db *pgxpool.Pool
}

func NewPgTickLease(db *pgxpool.Pool) *PgTickLease {
	return &PgTickLease{db: db}
}

func (l *PgTickLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease connection: %w", err)
	}

	var got bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", reminderLeaseKey).Scan(&got); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("advisory lock query failed: %w", err)
	}
	if !got {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on a background context: the tick's context may already be
		// done, and holding the lock past it would block the next tick.
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", reminderLeaseKey); err != nil {
			log.Printf("Failed to release tick lease: %v", err)
		}
		conn.Release()
	}
	return release, true, nil
}
