package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest observed price per pair key ("WCORE/ICE@venue").
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
	GetPrices(ctx context.Context, pairs []string) (map[string]float64, error)
}

// SignalBus is the pub/sub channel carrying observability events
// (opportunity_found, scan_summary) to downstream consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
