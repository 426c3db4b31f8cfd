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

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TradeStore persists the trade journal.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeRecord) error
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]TradeRecord, error)
}

// CycleStore persists cycle reports.
type CycleStore interface {
	Insert(ctx context.Context, report CycleReport) error
	ListRecent(ctx context.Context, limit int) ([]CycleReport, error)
}
