package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corewatch/dexarb/internal/config"
	"github.com/corewatch/dexarb/internal/domain"
)

// FromConfig builds a Notifier from the notification config. Senders are only
// registered for channels with credentials present; with no channel configured
// the Notifier is still returned and every dispatch is a no-op.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	var senders []Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return NewNotifier(senders, cfg.Events, logger)
}

// Relay consumes scan events from the signal bus and forwards them to the
// Notifier as human-readable alerts.
type Relay struct {
	notifier *Notifier
	bus      domain.SignalBus
	channel  string
	logger   *slog.Logger
}

// NewRelay creates a Relay reading from the given bus channel.
func NewRelay(notifier *Notifier, bus domain.SignalBus, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		notifier: notifier,
		bus:      bus,
		channel:  channel,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run subscribes to the bus and relays events until the context is cancelled.
// Malformed payloads are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	events, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", r.channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			event, title, message, err := FormatEvent(payload)
			if err != nil {
				r.logger.Warn("unparseable event payload", slog.String("error", err.Error()))
				continue
			}
			if err := r.notifier.Notify(ctx, event, title, message); err != nil {
				r.logger.Warn("notification delivery failed", slog.String("error", err.Error()))
			}
		}
	}
}

// busEvent is the envelope the orchestrator publishes.
type busEvent struct {
	Event       string              `json:"event"`
	Opportunity *domain.Opportunity `json:"opportunity,omitempty"`
	Stats       *domain.ScanStats   `json:"stats,omitempty"`
}

// FormatEvent turns a raw bus payload into an event type, alert title, and
// message body.
func FormatEvent(payload []byte) (event, title, message string, err error) {
	var ev busEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", "", "", fmt.Errorf("notify: decode event: %w", err)
	}

	switch ev.Event {
	case "opportunity_found":
		if ev.Opportunity == nil {
			return "", "", "", fmt.Errorf("notify: opportunity_found without opportunity")
		}
		opp := ev.Opportunity
		var size float64
		if len(opp.Legs) > 0 {
			size = opp.Legs[0].AmountIn
		}
		title = fmt.Sprintf("Arbitrage opportunity: %.3f%%", opp.ProfitPct)
		message = fmt.Sprintf("kind: %s\npath: %s\nvenues: %s\nsize: %g",
			opp.Kind,
			strings.Join(opp.Path, " -> "),
			strings.Join(opp.Venues, ", "),
			size,
		)
		return ev.Event, title, message, nil

	case "scan_summary":
		if ev.Stats == nil {
			return "", "", "", fmt.Errorf("notify: scan_summary without stats")
		}
		st := ev.Stats
		title = "Scan summary"
		message = fmt.Sprintf("scans: %d\nopportunities: %d\nexecuted: %d\nsimulated profit: %.4f",
			st.ScanCount, st.OpportunitiesFound, st.ExecutedCount, st.SimulatedProfit,
		)
		return ev.Event, title, message, nil

	default:
		return ev.Event, "Scanner event", string(payload), nil
	}
}
