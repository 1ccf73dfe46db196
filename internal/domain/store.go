package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// StateStore persists committed transitions and restores the registry.
type StateStore interface {
	Committer
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// StoredEvent is an event row read back from the event log.
type StoredEvent struct {
	ID int64
	Event
	Payload []byte `json:"-"`
}

// EventStore reads the append-only event log.
type EventStore interface {
	ListByBet(ctx context.Context, betID uint64, opts ListOpts) ([]StoredEvent, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]StoredEvent, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// ArchiveIndex tracks which settled bets have been exported to blob storage.
type ArchiveIndex interface {
	ListUnarchived(ctx context.Context, limit int) ([]uint64, error)
	MarkArchived(ctx context.Context, betID uint64) error
}
