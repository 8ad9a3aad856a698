package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore writes events to usage_events:
//
//	CREATE TABLE usage_events (
//		id          UUID PRIMARY KEY,
//		account     TEXT NOT NULL,
//		request_id  TEXT NOT NULL,
//		kind        TEXT NOT NULL,
//		provider    TEXT NOT NULL,
//		model       TEXT NOT NULL,
//		credits     BIGINT NOT NULL,
//		cost_usd    DOUBLE PRECISION NOT NULL,
//		latency_ms  BIGINT NOT NULL,
//		occurred_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX usage_events_account_time ON usage_events (account, occurred_at);
type PostgresStore struct {
	db DB
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Reader = (*PostgresStore)(nil)
)

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO usage_events (id, account, request_id, kind, provider, model, credits, cost_usd, latency_ms, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query,
		ev.ID, ev.Account, ev.RequestID, string(ev.Kind), ev.Provider, ev.Model,
		ev.Credits, ev.CostUSD, ev.LatencyMs, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append usage event: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, account string, from, to time.Time) ([]*Event, error) {
	query := `
		SELECT id, account, request_id, kind, provider, model, credits, cost_usd, latency_ms, occurred_at
		FROM usage_events
		WHERE account = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at DESC
	`
	rows, err := s.db.Query(ctx, query, account, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var ev Event
		var kind string
		err := rows.Scan(
			&ev.ID, &ev.Account, &ev.RequestID, &kind, &ev.Provider, &ev.Model,
			&ev.Credits, &ev.CostUSD, &ev.LatencyMs, &ev.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		ev.Kind = provider.Kind(kind)
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage events: %w", err)
	}

	return events, nil
}

func (s *PostgresStore) TotalCreditsByAccount(ctx context.Context, account string, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(credits), 0)
		FROM usage_events
		WHERE account = $1 AND occurred_at BETWEEN $2 AND $3
	`
	var total int64
	err := s.db.QueryRow(ctx, query, account, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total credits: %w", err)
	}

	return total, nil
}
