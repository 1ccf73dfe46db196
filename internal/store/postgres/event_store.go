package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visioninhope/BetM3/internal/domain"
)

// EventStore implements domain.EventStore over the append-only bet_events
// table written by StateStore.Commit.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventSelectCols = `id, COALESCE(bet_id, 0), type, at, payload`

// ListByBet returns the events of one bet, oldest first.
func (s *EventStore) ListByBet(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.StoredEvent, error) {
	query, args := paginate(
		`SELECT `+eventSelectCols+` FROM bet_events WHERE bet_id = $1`,
		[]any{int64(betID)}, "at", "id ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for bet %d: %w", betID, err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events for bet %d: %w", betID, err)
	}
	return events, nil
}

// ListRecent returns events across all bets, newest first.
func (s *EventStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.StoredEvent, error) {
	query, args := paginate(
		`SELECT `+eventSelectCols+` FROM bet_events WHERE 1=1`,
		nil, "at", "id DESC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (domain.StoredEvent, error) {
	var (
		e     domain.StoredEvent
		betID int64
		typ   string
	)
	if err := row.Scan(&e.ID, &betID, &typ, &e.At, &e.Payload); err != nil {
		return domain.StoredEvent{}, err
	}
	e.BetID = uint64(betID)
	e.Type = domain.EventType(typ)
	e.Data = json.RawMessage(e.Payload)
	return e, nil
}
