package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// Publisher broadcasts engine events. Both the Redis signal bus and the
// WebSocket hub satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// TradeService journals simulated fills. Every dependency is optional; a
// failing sink is logged and never blocks the trade.
type TradeService struct {
	trades domain.TradeStore
	bus    Publisher
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewTradeService creates a TradeService. Any of trades, bus or audit may be
// nil to disable that sink.
func NewTradeService(
	trades domain.TradeStore,
	bus Publisher,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades: trades,
		bus:    bus,
		audit:  audit,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// Record writes trade to the journal, publishes it on the trades channel and
// appends an audit entry.
func (s *TradeService) Record(ctx context.Context, trade domain.TradeRecord) {
	if s.trades != nil {
		if err := s.trades.Insert(ctx, trade); err != nil {
			s.logger.WarnContext(ctx, "trade_service: insert failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "trade_" + string(trade.Side),
			"trade":     trade,
			"timestamp": trade.ExecutedAt.Format(time.RFC3339),
		})
		if err := s.bus.Publish(ctx, domain.ChannelTrades, evt); err != nil {
			s.logger.WarnContext(ctx, "trade_service: publish event failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil {
		detail := map[string]any{
			"trade_id": trade.ID,
			"cycle_id": trade.CycleID,
			"symbol":   trade.Symbol,
			"quantity": trade.Quantity,
			"price":    trade.Price,
			"amount":   trade.Amount,
		}
		if trade.RiskScore != nil {
			detail["risk_score"] = *trade.RiskScore
		}
		if err := s.audit.Log(ctx, "trade_"+string(trade.Side), detail); err != nil {
			s.logger.WarnContext(ctx, "trade_service: audit log failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ListRecent returns the most recent journal entries, newest first.
func (s *TradeService) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	if s.trades == nil {
		return []domain.TradeRecord{}, nil
	}
	trades, err := s.trades.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list recent: %w", err)
	}
	return trades, nil
}

// ListBySymbol returns journal entries for one symbol, newest first.
func (s *TradeService) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	if s.trades == nil {
		return []domain.TradeRecord{}, nil
	}
	trades, err := s.trades.ListBySymbol(ctx, symbol, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by symbol %q: %w", symbol, err)
	}
	return trades, nil
}
