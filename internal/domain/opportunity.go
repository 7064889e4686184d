package domain

import "time"

// OpportunityKind classifies how a price discrepancy was found.
type OpportunityKind string

const (
	// OpportunityTriangular is a 3-hop cycle through distinct tokens on a
	// single venue that returns to the starting token.
	OpportunityTriangular OpportunityKind = "triangular"
	// OpportunityCrossVenue is a price gap for the same pair on two venues.
	OpportunityCrossVenue OpportunityKind = "cross_venue"
)

// Opportunity is a scored price discrepancy produced by one scan tick.
// Opportunities are value objects: produced fresh each tick, never mutated.
//
// For triangular opportunities Legs is the closed cycle (3 quotes, last leg
// ending at the first leg's input token) and Path lists the token symbols
// including the closing repeat. For cross-venue opportunities Legs holds
// exactly two quotes for the same pair, buy venue first.
type Opportunity struct {
	ID         string          `json:"id"`
	Kind       OpportunityKind `json:"kind"`
	Legs       []Quote         `json:"legs"`
	Path       []string        `json:"path"`
	Venues     []string        `json:"venues"`
	BuyVenue   string          `json:"buy_venue,omitempty"`
	SellVenue  string          `json:"sell_venue,omitempty"`
	ProfitPct  float64         `json:"profit_pct"`
	Profitable bool            `json:"profitable"`
	DetectedAt time.Time       `json:"detected_at"`
}
