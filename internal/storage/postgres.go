package storage

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages PostgreSQL operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL store with connection pooling
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// NUMERIC <-> decimal.Decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// InsertEvents appends journal rows using pgx.Batch
func (s *Store) InsertEvents(ctx context.Context, events []TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO transfer_events
			(occurred_at, wallet, transfer_id, kind, status, stage, source, destination, amount, balance, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			ev.OccurredAt,
			ev.Wallet,
			ev.TransferID,
			ev.Kind,
			ev.Status,
			ev.Stage,
			ev.Source,
			ev.Destination,
			ev.Amount,
			ev.Balance,
			ev.Error,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}

	return nil
}

// TransferEvents returns the journal of one transfer in order.
func (s *Store) TransferEvents(ctx context.Context, transferID string) ([]TransferEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, occurred_at, wallet, transfer_id, kind, status, stage, source, destination, amount, balance, error
		FROM transfer_events
		WHERE transfer_id = $1
		ORDER BY occurred_at, id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("query transfer events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TransferEvent, error) {
		var ev TransferEvent
		err := row.Scan(
			&ev.ID, &ev.OccurredAt, &ev.Wallet, &ev.TransferID, &ev.Kind, &ev.Status,
			&ev.Stage, &ev.Source, &ev.Destination, &ev.Amount, &ev.Balance, &ev.Error,
		)
		return ev, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transfer events: %w", err)
	}
	return events, nil
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
