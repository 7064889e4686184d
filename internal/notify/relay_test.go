package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFormatEventOpportunity(t *testing.T) {
	payload, err := json.Marshal(map[string]any{
		"event": "opportunity_found",
		"opportunity": domain.Opportunity{
			ID:        "opp-1",
			Kind:      domain.OpportunityTriangular,
			Path:      []string{"WCORE", "ICE", "USDT", "WCORE"},
			Venues:    []string{"icecreamswap"},
			ProfitPct: 1.234,
			Legs: []domain.Quote{
				{Venue: "icecreamswap", AmountIn: 100, AmountOut: 101, FetchedAt: time.Now()},
			},
		},
	})
	require.NoError(t, err)

	event, title, message, err := FormatEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "opportunity_found", event)
	assert.Contains(t, title, "1.234%")
	assert.Contains(t, message, "WCORE -> ICE -> USDT -> WCORE")
	assert.Contains(t, message, "triangular")
	assert.Contains(t, message, "size: 100")
}

func TestFormatEventSummary(t *testing.T) {
	payload, err := json.Marshal(map[string]any{
		"event": "scan_summary",
		"stats": domain.ScanStats{
			ScanCount:          42,
			OpportunitiesFound: 7,
			ExecutedCount:      2,
			SimulatedProfit:    0.0815,
		},
	})
	require.NoError(t, err)

	event, title, message, err := FormatEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "scan_summary", event)
	assert.Equal(t, "Scan summary", title)
	assert.Contains(t, message, "scans: 42")
	assert.Contains(t, message, "simulated profit: 0.0815")
}

func TestFormatEventMalformed(t *testing.T) {
	_, _, _, err := FormatEvent([]byte("{not json"))
	assert.Error(t, err)

	_, _, _, err = FormatEvent([]byte(`{"event":"opportunity_found"}`))
	assert.Error(t, err)
}

func TestNotifierEventFilter(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{"opportunity_found"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), "scan_summary", "summary", "body"))
	assert.Empty(t, rec.titles)

	require.NoError(t, n.Notify(context.Background(), "opportunity_found", "opp", "body"))
	require.Len(t, rec.titles, 1)
	assert.Equal(t, "opp", rec.titles[0])
}

func TestFromConfigNoChannelsIsNoop(t *testing.T) {
	n := FromConfig(config.NotifyConfig{}, testLogger())
	assert.NoError(t, n.NotifyAll(context.Background(), "t", "m"))
}
