package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// CycleStore implements domain.CycleStore. Each row carries summary columns
// for ad hoc queries plus the full report as JSONB.
type CycleStore struct {
	db querier
}

// NewCycleStore creates a CycleStore on c's pool.
func NewCycleStore(c *Client) *CycleStore {
	return &CycleStore{db: c.Pool()}
}

// Insert stores report.
func (s *CycleStore) Insert(ctx context.Context, r domain.CycleReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("postgres: marshal cycle %s: %w", r.ID, err)
	}
	const query = `
		INSERT INTO cycles (id, started_at, finished_at, candidates, opened, sells, errors, cash, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.db.Exec(ctx, query,
		r.ID, r.StartedAt, r.FinishedAt,
		len(r.Candidates), len(r.Opened), len(r.Sells()), len(r.Errors),
		r.Status.Cash, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert cycle %s: %w", r.ID, err)
	}
	return nil
}

// ListRecent returns up to limit reports, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]domain.CycleReport, error) {
	query, args := listQuery(`SELECT report FROM cycles WHERE 1=1`, "started_at", nil, domain.ListOpts{Limit: limit})
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles: %w", err)
	}
	defer rows.Close()

	reports := []domain.CycleReport{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle: %w", err)
		}
		var r domain.CycleReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal cycle: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list cycles rows: %w", err)
	}
	return reports, nil
}

var _ domain.CycleStore = (*CycleStore)(nil)
