package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// TradeStore implements domain.TradeStore over the trades table.
type TradeStore struct {
	db querier
}

// NewTradeStore creates a TradeStore on c's pool.
func NewTradeStore(c *Client) *TradeStore {
	return &TradeStore{db: c.Pool()}
}

const (
	tradeInsertCols = `id, cycle_id, symbol, side, quantity, price, amount,
	risk_score, realized_pnl, executed_at`
	tradeSelectCols = `id::text, cycle_id::text, symbol, side, quantity, price, amount,
	risk_score, realized_pnl, executed_at`
)

// Insert journals one simulated fill. Re-inserting the same trade ID is a
// no-op.
func (s *TradeStore) Insert(ctx context.Context, t domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (` + tradeInsertCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.Exec(ctx, query,
		t.ID, t.CycleID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.Amount,
		t.RiskScore, t.RealizedPnL, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListRecent returns trades newest first.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE 1=1`, "executed_at", nil, opts)
	return s.list(ctx, "list recent trades", query, args)
}

// ListBySymbol returns trades for symbol, newest first.
func (s *TradeStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE symbol = $1`, "executed_at", []any{symbol}, opts)
	return s.list(ctx, "list trades by symbol", query, args)
}

func (s *TradeStore) list(ctx context.Context, op, query string, args []any) ([]domain.TradeRecord, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()
	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	return trades, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	trades := []domain.TradeRecord{}
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		if err := rows.Scan(
			&t.ID, &t.CycleID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Amount,
			&t.RiskScore, &t.RealizedPnL, &t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

var _ domain.TradeStore = (*TradeStore)(nil)
