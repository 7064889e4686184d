package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corewatch/dexarb/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a LedgerStore backed by the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Insert stores one execution result.
func (s *LedgerStore) Insert(ctx context.Context, res domain.ExecutionResult) error {
	const query = `
		INSERT INTO execution_ledger (
			id, status, opportunity_id, opportunity, reason,
			gas_cost_estimate, tx_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	opp, err := json.Marshal(res.Opportunity)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity for %s: %w", res.ID, err)
	}

	_, err = s.pool.Exec(ctx, query,
		res.ID, string(res.Status), res.Opportunity.ID, opp, res.Reason,
		res.GasCostEstimate, res.TxHash, res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", res.ID, err)
	}
	return nil
}

const ledgerSelectCols = `id, status, opportunity, reason, gas_cost_estimate, tx_hash, created_at`

// ListRecent returns the most recent execution results, newest first.
func (s *LedgerStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	query := `SELECT ` + ledgerSelectCols + ` FROM execution_ledger ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// ListSince returns every execution result created at or after the given
// time, oldest first. Used by the ledger archiver.
func (s *LedgerStore) ListSince(ctx context.Context, since time.Time) ([]domain.ExecutionResult, error) {
	query := `SELECT ` + ledgerSelectCols + ` FROM execution_ledger
		WHERE created_at >= $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions since %s: %w", since, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanResults(rows rowScanner) ([]domain.ExecutionResult, error) {
	var results []domain.ExecutionResult
	for rows.Next() {
		var (
			res    domain.ExecutionResult
			status string
			opp    []byte
		)
		if err := rows.Scan(
			&res.ID, &status, &opp, &res.Reason,
			&res.GasCostEstimate, &res.TxHash, &res.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		res.Status = domain.ExecStatus(status)
		if err := json.Unmarshal(opp, &res.Opportunity); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal opportunity for %s: %w", res.ID, err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions rows: %w", err)
	}
	return results, nil
}
