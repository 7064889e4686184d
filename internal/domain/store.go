package domain

import (
	"context"
	"time"
)

// OpportunityStore persists scored opportunities for history queries. The
// in-memory tick results remain the source of truth for the live query
// surface; the store is a durable sink.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// LedgerStore persists execution results.
type LedgerStore interface {
	Insert(ctx context.Context, res ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	ListSince(ctx context.Context, since time.Time) ([]ExecutionResult, error)
}
