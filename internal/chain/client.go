// Package chain manages the JSON-RPC connection to the EVM chain. It handles
// endpoint failover at connect time and exposes the small read surface the
// rest of the system needs (contract calls and gas price).
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

// Caller is the read-only contract call surface exposed to venue adapters.
// *Client implements it against a live RPC endpoint; tests substitute fakes.
type Caller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Client wraps an ethclient connection with endpoint failover. Endpoints from
// the configuration are tried in order; the first one that answers a liveness
// check becomes the active connection.
type Client struct {
	cfg    config.ChainConfig
	logger *slog.Logger

	mu       sync.RWMutex
	eth      *ethclient.Client
	endpoint string
}

var _ domain.GasOracle = (*Client)(nil)
var _ Caller = (*Client)(nil)

// NewClient creates an unconnected Client. Call Connect before use.
func NewClient(cfg config.ChainConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "chain")),
	}
}

// Connect walks the configured endpoint list in order and keeps the first
// endpoint that dials successfully and answers a chain ID query. It returns
// domain.ErrNoEndpoints when every endpoint fails. Connect may be called
// again later to re-establish a dropped connection; it replaces the active
// client in place.
func (c *Client) Connect(ctx context.Context) error {
	for _, url := range c.cfg.RPCURLs {
		eth, err := c.dial(ctx, url)
		if err != nil {
			c.logger.Warn("endpoint unreachable",
				slog.String("url", url),
				slog.String("error", err.Error()))
			continue
		}

		c.mu.Lock()
		if c.eth != nil {
			c.eth.Close()
		}
		c.eth = eth
		c.endpoint = url
		c.mu.Unlock()

		c.logger.Info("connected", slog.String("url", url), slog.Int64("chain_id", c.cfg.ChainID))
		return nil
	}
	return fmt.Errorf("chain: connect: %w", domain.ErrNoEndpoints)
}

// dial opens a connection to url and verifies liveness with a chain ID query.
// A mismatched chain ID is treated as a dead endpoint, not a fatal error, so
// the walk can continue to the next URL.
func (c *Client) dial(ctx context.Context, url string) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout.Duration)
	defer cancel()

	eth, err := ethclient.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	id, err := eth.ChainID(dialCtx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if c.cfg.ChainID > 0 && id.Int64() != c.cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %d, expected %d", id.Int64(), c.cfg.ChainID)
	}
	return eth, nil
}

// Endpoint returns the URL of the currently active endpoint.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Eth returns the underlying ethclient for callers that need the full
// client surface (transaction submission, nonce queries).
func (c *Client) Eth() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eth
}

// CallContract performs an eth_call against the given contract with the
// configured per-call timeout. Contract-side reverts are wrapped in
// domain.ErrExecutionReverted, everything else in domain.ErrRPCFailure, so
// callers can tell a refusing contract from a failing node.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.RLock()
	eth := c.eth
	c.mu.RUnlock()
	if eth == nil {
		return nil, fmt.Errorf("chain: call: not connected: %w", domain.ErrRPCFailure)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout.Duration)
	defer cancel()

	out, err := eth.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, wrapCallError(to, err)
	}
	return out, nil
}

// wrapCallError classifies a failed eth_call. Node-side reverts carry
// structured error data (rpc.DataError); some endpoints only report the
// standard revert message, so that is matched as well.
func wrapCallError(to common.Address, err error) error {
	var de rpc.DataError
	if errors.As(err, &de) || strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("chain: call %s: %v: %w", to.Hex(), err, domain.ErrExecutionReverted)
	}
	return fmt.Errorf("chain: call %s: %v: %w", to.Hex(), err, domain.ErrRPCFailure)
}

// GasPrice returns the node's suggested gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	eth := c.eth
	c.mu.RUnlock()
	if eth == nil {
		return nil, fmt.Errorf("chain: gas price: not connected: %w", domain.ErrRPCFailure)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout.Duration)
	defer cancel()

	price, err := eth.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, fmt.Errorf("chain: gas price: %v: %w", err, domain.ErrRPCFailure)
	}
	return price, nil
}

// BlockNumber returns the latest block height, used by the health endpoint.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	eth := c.eth
	c.mu.RUnlock()
	if eth == nil {
		return 0, fmt.Errorf("chain: block number: not connected: %w", domain.ErrRPCFailure)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout.Duration)
	defer cancel()

	n, err := eth.BlockNumber(callCtx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %v: %w", err, domain.ErrRPCFailure)
	}
	return n, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	return nil
}
