// Package scanner enumerates arbitrage paths over the configured token
// universe and scores them against the two-tier profit thresholds.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

// Scanner runs triangular and cross-venue sweeps over a token universe.
// The universe is intentionally small; enumeration is cubic in the number of
// tokens and every leg is a live RPC read.
type Scanner struct {
	quoters    []domain.Quoter
	tokens     []domain.TokenRef
	cfg        config.ArbitrageConfig
	priceCache domain.PriceCache // optional, may be nil
	logger     *slog.Logger
}

// New creates a Scanner. Unverified tokens (zero address) are dropped from
// the universe up front with a warning.
func New(quoters []domain.Quoter, tokens []domain.TokenRef, cfg config.ArbitrageConfig, priceCache domain.PriceCache, logger *slog.Logger) *Scanner {
	logger = logger.With(slog.String("component", "scanner"))

	verified := make([]domain.TokenRef, 0, len(tokens))
	for _, t := range tokens {
		if !t.Verified() {
			logger.Warn("excluding unverified token", slog.String("symbol", t.Symbol))
			continue
		}
		verified = append(verified, t)
	}

	return &Scanner{
		quoters:    quoters,
		tokens:     verified,
		cfg:        cfg,
		priceCache: priceCache,
		logger:     logger,
	}
}

// Tokens returns the verified token universe the scanner operates on.
func (s *Scanner) Tokens() []domain.TokenRef { return s.tokens }

// Scan runs both sweeps and returns every opportunity above the report
// threshold, profitable ones flagged. The context deadline bounds the whole
// scan.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Opportunity, error) {
	tri, err := s.Triangular(ctx)
	if err != nil {
		return nil, err
	}
	cross, err := s.CrossVenue(ctx)
	if err != nil {
		return nil, err
	}
	return append(tri, cross...), nil
}

// Triangular enumerates every ordered triple (i, j, k) of distinct tokens and
// quotes the cycle i -> j -> k -> i on each venue, legs chained sequentially.
// A cycle whose any leg fails to quote is dropped silently; failure of one
// cycle never aborts the sweep.
func (s *Scanner) Triangular(ctx context.Context) ([]domain.Opportunity, error) {
	type cycle struct {
		quoter  domain.Quoter
		a, b, c domain.TokenRef
	}

	var cycles []cycle
	for _, q := range s.quoters {
		for i := range s.tokens {
			for j := range s.tokens {
				for k := range s.tokens {
					if i == j || j == k || i == k {
						continue
					}
					cycles = append(cycles, cycle{q, s.tokens[i], s.tokens[j], s.tokens[k]})
				}
			}
		}
	}

	var (
		mu   sync.Mutex
		opps []domain.Opportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxFanout)

	for _, c := range cycles {
		g.Go(func() error {
			opp, ok := s.quoteCycle(gctx, c.quoter, c.a, c.b, c.c)
			if !ok {
				return nil
			}
			mu.Lock()
			opps = append(opps, opp)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanner: triangular sweep: %w", err)
	}
	return opps, nil
}

// quoteCycle quotes the three legs of one cycle in order, each leg's output
// feeding the next leg's input. It returns ok=false when any leg fails or the
// final output sits at or below the report floor.
func (s *Scanner) quoteCycle(ctx context.Context, q domain.Quoter, a, b, c domain.TokenRef) (domain.Opportunity, bool) {
	amount := s.cfg.TradeSize
	legs := make([]domain.Quote, 0, 3)

	for _, hop := range [][2]domain.TokenRef{{a, b}, {b, c}, {c, a}} {
		quote, err := q.Quote(ctx, hop[0], hop[1], amount)
		if err != nil {
			s.logger.Debug("cycle dropped",
				slog.String("venue", q.Name()),
				slog.String("path", a.Symbol+"->"+b.Symbol+"->"+c.Symbol+"->"+a.Symbol),
				slog.String("error", err.Error()))
			return domain.Opportunity{}, false
		}
		s.cachePrice(ctx, quote)
		legs = append(legs, quote)
		amount = quote.AmountOut
	}

	profitPct := (amount/s.cfg.TradeSize - 1) * 100
	if profitPct <= s.cfg.ReportThreshold*100 {
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:         uuid.NewString(),
		Kind:       domain.OpportunityTriangular,
		Legs:       legs,
		Path:       []string{a.Symbol, b.Symbol, c.Symbol, a.Symbol},
		Venues:     []string{q.Name()},
		ProfitPct:  profitPct,
		Profitable: profitPct > s.cfg.MinProfitThreshold*100,
		DetectedAt: time.Now().UTC(),
	}, true
}

// CrossVenue compares each unordered token pair across every venue pair. A
// venue whose quote fails is excluded from the comparison for that pair; it
// never participates with a zero price.
func (s *Scanner) CrossVenue(ctx context.Context) ([]domain.Opportunity, error) {
	if len(s.quoters) < 2 {
		return nil, nil
	}

	type venueQuote struct {
		quote domain.Quote
		rate  float64
	}

	var opps []domain.Opportunity
	for i := 0; i < len(s.tokens); i++ {
		for j := i + 1; j < len(s.tokens); j++ {
			in, out := s.tokens[i], s.tokens[j]

			quotes := make([]venueQuote, 0, len(s.quoters))
			for _, q := range s.quoters {
				quote, err := q.Quote(ctx, in, out, s.cfg.TradeSize)
				if err != nil {
					s.logger.Debug("venue excluded from pair comparison",
						slog.String("venue", q.Name()),
						slog.String("pair", in.Symbol+"/"+out.Symbol),
						slog.String("error", err.Error()))
					continue
				}
				s.cachePrice(ctx, quote)
				quotes = append(quotes, venueQuote{quote, quote.AmountOut / quote.AmountIn})
			}

			for x := 0; x < len(quotes); x++ {
				for y := x + 1; y < len(quotes); y++ {
					lo, hi := quotes[x], quotes[y]
					if lo.rate > hi.rate {
						lo, hi = hi, lo
					}
					if lo.rate <= 0 {
						continue
					}

					profitPct := (hi.rate/lo.rate - 1) * 100
					if profitPct <= s.cfg.ReportThreshold*100 {
						continue
					}

					// Buy on the venue quoting the lower amount-out, sell
					// where it is higher. The buy leg comes first.
					opps = append(opps, domain.Opportunity{
						ID:         uuid.NewString(),
						Kind:       domain.OpportunityCrossVenue,
						Legs:       []domain.Quote{lo.quote, hi.quote},
						Path:       []string{in.Symbol, out.Symbol},
						Venues:     []string{lo.quote.Venue, hi.quote.Venue},
						BuyVenue:   lo.quote.Venue,
						SellVenue:  hi.quote.Venue,
						ProfitPct:  profitPct,
						Profitable: profitPct > s.cfg.MinProfitThreshold*100,
						DetectedAt: time.Now().UTC(),
					})
				}
			}
		}
	}
	return opps, nil
}

// cachePrice records the observed rate in the price cache when one is wired.
// Cache failures are logged and ignored; the cache is advisory.
func (s *Scanner) cachePrice(ctx context.Context, q domain.Quote) {
	if s.priceCache == nil || q.AmountIn <= 0 {
		return
	}
	pair := q.TokenIn.Symbol + "/" + q.TokenOut.Symbol + "@" + q.Venue
	if err := s.priceCache.SetPrice(ctx, pair, q.AmountOut/q.AmountIn, q.FetchedAt); err != nil {
		s.logger.Debug("price cache write failed", slog.String("pair", pair), slog.String("error", err.Error()))
	}
}
