package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/corewatch/dexarb/internal/blob/s3"
	"github.com/corewatch/dexarb/internal/cache/redis"
	"github.com/corewatch/dexarb/internal/chain"
	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/crypto"
	"github.com/corewatch/dexarb/internal/decision"
	"github.com/corewatch/dexarb/internal/dex"
	"github.com/corewatch/dexarb/internal/domain"
	"github.com/corewatch/dexarb/internal/executor"
	"github.com/corewatch/dexarb/internal/notify"
	"github.com/corewatch/dexarb/internal/orchestrator"
	"github.com/corewatch/dexarb/internal/scanner"
	"github.com/corewatch/dexarb/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chain  *chain.Client
	Tokens []domain.TokenRef
	Venues []*dex.Venue

	Scanner      *scanner.Scanner
	Engine       *decision.Engine
	Orchestrator *orchestrator.Orchestrator

	// Optional collaborators; nil when the backing service is disabled.
	OppStore    domain.OpportunityStore
	LedgerStore domain.LedgerStore
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	Archiver    *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function. A chain
// connection failure here is fatal; once the loop runs, connectivity problems
// only fail individual ticks.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain ---
	chainClient := chain.NewClient(cfg.Chain, logger)
	if err := chainClient.Connect(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, func() { _ = chainClient.Close() })
	deps.Chain = chainClient

	// --- Tokens and venues ---
	deps.Tokens = tokensFromConfig(cfg.Tokens)
	for _, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		deps.Venues = append(deps.Venues, dex.NewVenue(vc, chainClient, logger))
	}
	if len(deps.Venues) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: no enabled venues")
	}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Postgres (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OppStore = postgres.NewOpportunityStore(pool)
		deps.LedgerStore = postgres.NewLedgerStore(pool)
	}

	// --- S3 ledger archival (optional, requires the Postgres ledger) ---
	if cfg.S3.Enabled {
		if deps.LedgerStore == nil {
			logger.Warn("s3 archival enabled without postgres; skipping archiver")
		} else {
			s3Client, err := s3blob.New(ctx, cfg.S3)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}
			closers = append(closers, func() { _ = s3Client.Close() })

			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				deps.LedgerStore,
				cfg.S3.ArchiveInterval.Duration,
				logger,
			)
		}
	}

	// --- Wallet and submitter (trade mode only) ---
	var submitter domain.Submitter
	if strings.ToLower(cfg.Mode) == "trade" {
		sub, err := buildSubmitter(cfg, chainClient, deps.Venues[0], logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: submitter: %w", err)
		}
		submitter = sub
	} else if keySource(cfg.Wallet).Configured() {
		logger.Info("signing key configured but mode is read-only; execution disabled")
	} else {
		logger.Info("no signing key configured; running read-only, opportunities will be simulated")
	}

	// --- Core pipeline ---
	deps.Scanner = scanner.New(quoters(deps.Venues), deps.Tokens, cfg.Arbitrage, deps.PriceCache, logger)
	deps.Engine = decision.New(cfg.Risk, cfg.Arbitrage, chainClient, submitter, logger)
	deps.Orchestrator = orchestrator.New(deps.Scanner, deps.Engine, cfg.Monitoring, orchestrator.Options{
		Reconnect:   chainClient,
		OppStore:    deps.OppStore,
		LedgerStore: deps.LedgerStore,
		Bus:         deps.SignalBus,
	}, logger)

	// --- Notifications ---
	deps.Notifier = notify.FromConfig(cfg.Notify, logger)

	return deps, cleanup, nil
}

// tokensFromConfig converts the symbol -> address map into a stable, sorted
// token list. Unverified entries (zero address) are kept; the scanner excludes
// them with a warning so operators can see the misconfiguration.
func tokensFromConfig(tokens map[string]string) []domain.TokenRef {
	symbols := make([]string, 0, len(tokens))
	for sym := range tokens {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	refs := make([]domain.TokenRef, 0, len(symbols))
	for _, sym := range symbols {
		refs = append(refs, domain.TokenRef{
			Symbol:  sym,
			Address: common.HexToAddress(tokens[sym]),
		})
	}
	return refs
}

func quoters(venues []*dex.Venue) []domain.Quoter {
	out := make([]domain.Quoter, len(venues))
	for i, v := range venues {
		out[i] = v
	}
	return out
}

func keySource(w config.WalletConfig) crypto.KeySource {
	return crypto.KeySource{
		RawPrivateKey:    w.PrivateKey,
		EncryptedKeyPath: w.EncryptedKeyPath,
		KeyPassword:      w.KeyPassword,
	}
}

// buildSubmitter resolves the signing key, builds the signer, and binds the
// submitter to the primary venue's router and decimals cache.
func buildSubmitter(cfg *config.Config, chainClient *chain.Client, primary *dex.Venue, logger *slog.Logger) (*executor.Submitter, error) {
	keyHex, err := crypto.LoadKey(keySource(cfg.Wallet))
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}

	signer, err := crypto.NewSigner(keyHex, cfg.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	logger.Info("execution enabled",
		slog.String("address", signer.Address().Hex()),
		slog.String("router", primary.Router().Hex()),
	)

	return executor.NewSubmitter(
		chainClient,
		signer,
		primary.Router(),
		primary.Decimals,
		cfg.Risk.GasLimitPerTx,
		logger,
	), nil
}
