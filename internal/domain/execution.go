package domain

import (
	"context"
	"time"
)

// ExecStatus is the terminal state of the decision engine for one opportunity.
type ExecStatus string

const (
	ExecExecuted  ExecStatus = "executed"
	ExecSimulated ExecStatus = "simulated"
	ExecSkipped   ExecStatus = "skipped"
	ExecFailed    ExecStatus = "failed"
)

// ExecutionResult records the decision taken for one opportunity. Results are
// appended to the orchestrator's in-memory ledger and never deleted during a
// run. GasCostEstimate is in the native gas asset and zero when no gas lookup
// was performed.
type ExecutionResult struct {
	ID              string      `json:"id"`
	Status          ExecStatus  `json:"status"`
	Opportunity     Opportunity `json:"opportunity"`
	Reason          string      `json:"reason,omitempty"`
	GasCostEstimate float64     `json:"gas_cost_estimate,omitempty"`
	TxHash          string      `json:"tx_hash,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
}

// SwapInstruction describes one leg handed to the transaction submission
// collaborator. Amounts are in human decimal precision of the tokens.
type SwapInstruction struct {
	FromToken    TokenRef
	ToToken      TokenRef
	AmountIn     float64
	MinAmountOut float64
	Deadline     time.Time
}

// SubmitResult is the submission collaborator's response for one instruction
// group.
type SubmitResult struct {
	TxHash  string
	Success bool
	Err     string
}

// Submitter is the transaction submission collaborator boundary. The core
// never builds, signs, or broadcasts transactions itself; it hands legs to a
// Submitter and surfaces failures as ExecutionResult status "failed".
// Implementations must serialize nonce allocation internally.
type Submitter interface {
	Submit(ctx context.Context, legs []SwapInstruction) (SubmitResult, error)
}
