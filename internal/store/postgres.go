package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaconhq/beacon/internal/queue"
)

const createQueueTable = `
CREATE TABLE IF NOT EXISTS beacon_queue (
	pos         BIGSERIAL PRIMARY KEY,
	payload     JSONB NOT NULL,
	enqueued_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore spools the queue to a Postgres table, for hosts that want the
// spool to survive the machine, not just the process.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database, verifies the connection and
// ensures the spool table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, createQueueTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure spool table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context) ([]queue.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload, enqueued_at FROM beacon_queue ORDER BY pos ASC`)
	if err != nil {
		return nil, fmt.Errorf("load spool: %w", err)
	}
	defer rows.Close()

	var entries []queue.Entry
	for rows.Next() {
		var raw []byte
		var e queue.Entry
		if err := rows.Scan(&raw, &e.EnqueuedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Payload); err != nil {
			return nil, fmt.Errorf("parse spooled payload: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PostgresStore) Save(ctx context.Context, entries []queue.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE beacon_queue RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate spool: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal spooled payload: %w", err)
		}
		batch.Queue(`INSERT INTO beacon_queue(payload, enqueued_at) VALUES ($1::jsonb, $2)`, string(raw), e.EnqueuedAt)
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		if err := br.Close(); err != nil {
			return fmt.Errorf("insert spool entries: %w", err)
		}
	}
	return tx.Commit(ctx)
}
