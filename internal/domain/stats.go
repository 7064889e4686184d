package domain

import "time"

// ScanStats is a snapshot of the orchestrator's process-lifetime counters.
// The orchestrator owns the live values; readers always receive a copy.
// SimulatedProfit accumulates profitPct/100 for every executed or simulated
// opportunity and is an estimate, not settled PnL.
type ScanStats struct {
	ScanCount          int64     `json:"scan_count"`
	OpportunitiesFound int64     `json:"opportunities_found"`
	ExecutedCount      int64     `json:"executed_count"`
	SimulatedProfit    float64   `json:"simulated_profit"`
	StartedAt          time.Time `json:"started_at"`
	LastScanAt         time.Time `json:"last_scan_at"`
}
