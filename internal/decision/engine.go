// Package decision turns scored opportunities into execution outcomes. The
// engine never touches the chain for submission itself; it estimates gas,
// applies the profit gate, and hands cleared trades to the submitter.
package decision

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

const (
	// ReasonBelowThreshold marks opportunities that never cleared the
	// profit floor.
	ReasonBelowThreshold = "below_threshold"
	// ReasonGasExceedsProfit marks profitable opportunities whose estimated
	// gas cost eats the expected edge.
	ReasonGasExceedsProfit = "gas_exceeds_profit"
	// ReasonReadOnly marks trades that would have executed but no signing
	// credential is configured.
	ReasonReadOnly = "no_signer_configured"
	// ReasonGasLookupFailed marks decisions aborted because the gas price
	// could not be fetched while a signer was configured.
	ReasonGasLookupFailed = "gas_lookup_failed"

	weiPerGwei  = 1e9
	weiPerEther = 1e18
	// slippageTolerance bounds the minimum acceptable output per leg.
	slippageTolerance = 0.005
	// txDeadline is how long a submitted swap stays valid.
	txDeadline = 2 * time.Minute
)

// Engine decides what to do with each opportunity a scan tick produced.
type Engine struct {
	cfg       config.RiskConfig
	floor     float64 // min profit threshold as a fraction
	gasOracle domain.GasOracle
	submitter domain.Submitter // nil means read-only
	logger    *slog.Logger
}

// New creates an Engine. Pass a nil submitter for read-only operation; every
// decision then terminates at simulated or skipped.
func New(risk config.RiskConfig, arb config.ArbitrageConfig, gasOracle domain.GasOracle, submitter domain.Submitter, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       risk,
		floor:     arb.MinProfitThreshold,
		gasOracle: gasOracle,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "decision")),
	}
}

// ReadOnly reports whether the engine has no submitter wired.
func (e *Engine) ReadOnly() bool { return e.submitter == nil }

// Decide maps one opportunity to its terminal execution result. The state
// walk is strictly ordered: threshold gate first, then the signer check, then
// gas, then submission. Gas lookups are skipped entirely in read-only mode so
// a scan-only deployment works with no gas price source at all.
func (e *Engine) Decide(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult {
	res := domain.ExecutionResult{
		ID:          uuid.NewString(),
		Opportunity: opp,
		Timestamp:   time.Now().UTC(),
	}

	if !opp.Profitable || opp.ProfitPct <= e.floor*100 {
		res.Status = domain.ExecSkipped
		res.Reason = ReasonBelowThreshold
		return res
	}

	if e.submitter == nil {
		res.Status = domain.ExecSimulated
		res.Reason = ReasonReadOnly
		e.logger.Info("simulated execution",
			slog.String("opportunity", opp.ID),
			slog.Float64("profit_pct", opp.ProfitPct))
		return res
	}

	gasCost, err := e.estimateGasCost(ctx)
	if err != nil {
		res.Status = domain.ExecFailed
		res.Reason = ReasonGasLookupFailed + ": " + err.Error()
		e.logger.Warn("gas lookup failed", slog.String("error", err.Error()))
		return res
	}
	res.GasCostEstimate = gasCost

	estProfit := e.estimatedProfit(opp)
	if gasCost >= estProfit {
		res.Status = domain.ExecSkipped
		res.Reason = ReasonGasExceedsProfit
		e.logger.Info("skipping, gas exceeds edge",
			slog.String("opportunity", opp.ID),
			slog.Float64("gas_cost", gasCost),
			slog.Float64("est_profit", estProfit))
		return res
	}

	submit, err := e.submitter.Submit(ctx, buildLegs(opp))
	if err != nil {
		res.Status = domain.ExecFailed
		res.Reason = err.Error()
		e.logger.Error("submission failed",
			slog.String("opportunity", opp.ID),
			slog.String("error", err.Error()))
		return res
	}
	if !submit.Success {
		res.Status = domain.ExecFailed
		res.Reason = submit.Err
		res.TxHash = submit.TxHash
		return res
	}

	res.Status = domain.ExecExecuted
	res.TxHash = submit.TxHash
	e.logger.Info("executed",
		slog.String("opportunity", opp.ID),
		slog.String("tx_hash", submit.TxHash),
		slog.Float64("profit_pct", opp.ProfitPct))
	return res
}

// estimateGasCost returns the cost of one transaction in the native asset,
// gasPrice x gas_limit_per_tx. A failed oracle read falls back to the
// configured gas price only when one is set above zero; otherwise the error
// propagates.
func (e *Engine) estimateGasCost(ctx context.Context) (float64, error) {
	price, err := e.gasOracle.GasPrice(ctx)
	if err != nil {
		if e.cfg.FallbackGasPriceGwei > 0 {
			e.logger.Warn("gas oracle failed, using fallback price",
				slog.Float64("fallback_gwei", e.cfg.FallbackGasPriceGwei),
				slog.String("error", err.Error()))
			return e.cfg.FallbackGasPriceGwei * weiPerGwei * float64(e.cfg.GasLimitPerTx) / weiPerEther, nil
		}
		return 0, err
	}

	wei := new(big.Float).SetInt(price)
	wei.Mul(wei, new(big.Float).SetUint64(e.cfg.GasLimitPerTx))
	wei.Quo(wei, big.NewFloat(weiPerEther))
	out, _ := wei.Float64()
	return out, nil
}

// estimatedProfit converts the percentage edge into native-asset terms using
// the first leg's input size. This treats the traded token as the gas asset,
// which holds for the WCORE-anchored universes the scanner runs over.
func (e *Engine) estimatedProfit(opp domain.Opportunity) float64 {
	size := 0.0
	if len(opp.Legs) > 0 {
		size = opp.Legs[0].AmountIn
	}
	return size * opp.ProfitPct / 100
}

// buildLegs converts an opportunity's quotes into swap instructions with a
// slippage-bounded minimum output and a fixed deadline.
func buildLegs(opp domain.Opportunity) []domain.SwapInstruction {
	deadline := time.Now().Add(txDeadline)
	legs := make([]domain.SwapInstruction, 0, len(opp.Legs))
	for _, q := range opp.Legs {
		legs = append(legs, domain.SwapInstruction{
			FromToken:    q.TokenIn,
			ToToken:      q.TokenOut,
			AmountIn:     q.AmountIn,
			MinAmountOut: q.AmountOut * (1 - slippageTolerance),
			Deadline:     deadline,
		})
	}
	return legs
}
