// Package executor submits swap transactions to the chain. It sits behind the
// domain.Submitter boundary: the decision engine hands it instruction legs and
// gets back a transaction hash or an error, nothing else crosses over.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/corewatch/dexarb/internal/chain"
	"github.com/corewatch/dexarb/internal/crypto"
	"github.com/corewatch/dexarb/internal/dex"
	"github.com/corewatch/dexarb/internal/domain"
)

// DecimalsFunc resolves a token's decimal precision, normally backed by the
// primary venue's cached lookup.
type DecimalsFunc func(ctx context.Context, token common.Address) uint8

// Submitter signs and broadcasts router swaps. Submissions are serialized
// behind a mutex so nonce allocation stays strictly ordered; at most one
// multi-leg execution is in flight at a time.
type Submitter struct {
	client   *chain.Client
	signer   *crypto.Signer
	router   common.Address
	decimals DecimalsFunc
	gasLimit uint64
	dedup    *Dedup
	logger   *slog.Logger

	mu sync.Mutex
}

var _ domain.Submitter = (*Submitter)(nil)

// NewSubmitter creates a Submitter that routes every leg through the given
// router contract.
func NewSubmitter(client *chain.Client, signer *crypto.Signer, router common.Address, decimals DecimalsFunc, gasLimit uint64, logger *slog.Logger) *Submitter {
	return &Submitter{
		client:   client,
		signer:   signer,
		router:   router,
		decimals: decimals,
		gasLimit: gasLimit,
		dedup:    NewDedup(2 * time.Minute),
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Submit broadcasts one transaction per leg, sequentially, and returns the
// hash of the last transaction sent. Legs are best-effort up to the first
// failure: a leg that cannot be sent aborts the remainder, and the error is
// reported in the result rather than leaving legs silently unsent.
func (s *Submitter) Submit(ctx context.Context, legs []domain.SwapInstruction) (domain.SubmitResult, error) {
	if len(legs) == 0 {
		return domain.SubmitResult{}, fmt.Errorf("executor: no legs to submit")
	}
	if s.signer == nil {
		return domain.SubmitResult{}, fmt.Errorf("executor: %w", domain.ErrSigningUnavailable)
	}

	sig := pathSignature(legs)
	if s.dedup.IsDuplicate(sig) {
		return domain.SubmitResult{}, fmt.Errorf("executor: path %s already submitted recently", sig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eth := s.client.Eth()
	if eth == nil {
		return domain.SubmitResult{}, fmt.Errorf("executor: not connected: %w", domain.ErrRPCFailure)
	}

	from := s.signer.Address()
	nonce, err := eth.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("executor: fetching nonce: %w", err)
	}
	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("executor: fetching gas price: %w", err)
	}

	var lastHash string
	for i, leg := range legs {
		data, err := s.packLeg(ctx, leg)
		if err != nil {
			return domain.SubmitResult{TxHash: lastHash, Success: false, Err: err.Error()}, nil
		}

		tx := types.NewTransaction(nonce+uint64(i), s.router, big.NewInt(0), s.gasLimit, gasPrice, data)
		signed, err := s.signer.SignTx(tx)
		if err != nil {
			return domain.SubmitResult{TxHash: lastHash, Success: false, Err: err.Error()}, nil
		}

		if err := eth.SendTransaction(ctx, signed); err != nil {
			s.logger.Error("leg broadcast failed",
				slog.Int("leg", i),
				slog.String("error", err.Error()))
			return domain.SubmitResult{TxHash: lastHash, Success: false,
				Err: fmt.Sprintf("leg %d: %v", i, err)}, nil
		}

		lastHash = signed.Hash().Hex()
		s.logger.Info("leg broadcast",
			slog.Int("leg", i),
			slog.String("tx_hash", lastHash),
			slog.String("pair", leg.FromToken.Symbol+"->"+leg.ToToken.Symbol))
	}

	return domain.SubmitResult{TxHash: lastHash, Success: true}, nil
}

// packLeg encodes one swapExactTokensForTokens call for the leg.
func (s *Submitter) packLeg(ctx context.Context, leg domain.SwapInstruction) ([]byte, error) {
	decIn := s.decimals(ctx, leg.FromToken.Address)
	decOut := s.decimals(ctx, leg.ToToken.Address)

	amountIn := dex.ToBaseUnits(leg.AmountIn, decIn)
	minOut := dex.ToBaseUnits(leg.MinAmountOut, decOut)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("executor: leg amount %g rounds to zero", leg.AmountIn)
	}

	deadline := leg.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(2 * time.Minute)
	}

	data, err := dex.PackSwapExactTokensForTokens(
		amountIn,
		minOut,
		[]common.Address{leg.FromToken.Address, leg.ToToken.Address},
		s.signer.Address(),
		big.NewInt(deadline.Unix()),
	)
	if err != nil {
		return nil, fmt.Errorf("executor: packing swap: %w", err)
	}
	return data, nil
}

// pathSignature identifies a trade path for deduplication.
func pathSignature(legs []domain.SwapInstruction) string {
	parts := make([]string, 0, len(legs)+1)
	for _, leg := range legs {
		parts = append(parts, leg.FromToken.Symbol)
	}
	parts = append(parts, legs[len(legs)-1].ToToken.Symbol)
	return strings.Join(parts, "->")
}
