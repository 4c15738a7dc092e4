package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vorschlag/trading-bot/internal/adapters"
	"github.com/vorschlag/trading-bot/internal/config"
	"github.com/vorschlag/trading-bot/internal/news"
	"github.com/vorschlag/trading-bot/internal/observ"
	"github.com/vorschlag/trading-bot/internal/positions"
	"github.com/vorschlag/trading-bot/internal/regime"
	"github.com/vorschlag/trading-bot/internal/risk"
)

const (
	offHoursWait      = time.Minute
	connectivityWait  = time.Minute
	defaultVIX        = 20.0
	defaultSP500Trend = "neutral"
)

// Bot drives the periodic decision pipeline: news fusion, regime
// classification, exit evaluation and opportunity search.
type Bot struct {
	cfg        config.Root
	aggregator *news.Aggregator
	analyzer   *regime.Analyzer
	controller *positions.Controller
	broker     adapters.Broker
	sizer      *risk.Manager

	location   *time.Location
	peakEquity float64
	cycleCount int
	now        func() time.Time
}

func NewBot(cfg config.Root, aggregator *news.Aggregator, analyzer *regime.Analyzer, controller *positions.Controller, broker adapters.Broker, sizer *risk.Manager) (*Bot, error) {
	loc, err := time.LoadLocation(cfg.TradingHours.Timezone)
	if err != nil {
		return nil, err
	}
	return &Bot{
		cfg:        cfg,
		aggregator: aggregator,
		analyzer:   analyzer,
		controller: controller,
		broker:     broker,
		sizer:      sizer,
		location:   loc,
		now:        time.Now,
	}, nil
}

// Run executes cycles at the configured interval until the context is
// cancelled. Cancellation takes effect between cycles, never mid-pass.
func (b *Bot) Run(ctx context.Context) error {
	interval := time.Duration(b.cfg.Trading.CycleIntervalSeconds) * time.Second
	observ.Log("bot_started", map[string]any{
		"mode":           b.cfg.Trading.Mode,
		"capital":        b.cfg.Trading.Capital,
		"cycle_interval": interval.String(),
	})

	for {
		if err := ctx.Err(); err != nil {
			observ.Log("bot_stopped", map[string]any{"reason": "context cancelled"})
			return nil
		}

		if !b.withinTradingHours(b.now()) {
			observ.Log("outside_trading_hours", map[string]any{"wait": offHoursWait.String()})
			if !sleepCtx(ctx, offHoursWait) {
				return nil
			}
			continue
		}

		// The pass runs to completion even if the outer context is
		// cancelled while it is in flight.
		err := b.Cycle(context.WithoutCancel(ctx))
		if err != nil && adapters.IsConnectivity(err) {
			observ.Log("broker_connectivity_lost", map[string]any{"wait": connectivityWait.String(), "error": err.Error()})
			observ.IncCounter("connectivity_cooldowns_total", nil)
			if !sleepCtx(ctx, connectivityWait) {
				return nil
			}
			continue
		}
		if err != nil {
			observ.Log("cycle_error", map[string]any{"error": err.Error()})
		}

		if !sleepCtx(ctx, interval) {
			return nil
		}
	}
}

// Cycle runs one full decision pass.
func (b *Bot) Cycle(ctx context.Context) error {
	b.cycleCount++
	cycleID := uuid.NewString()
	started := b.now()

	observ.Log("cycle_started", map[string]any{"cycle": b.cycleCount, "cycle_id": cycleID})
	observ.IncCounter("cycles_total", nil)

	fused := b.aggregator.FetchMarketNews(ctx, true)
	observ.Log("news_fetched", map[string]any{
		"cycle_id":  cycleID,
		"articles":  len(fused.Articles),
		"sentiment": fused.OverallSentiment,
	})

	vix := b.vixLevel(ctx)

	analysis := b.analyzer.Classify(ctx, fused, vix, defaultSP500Trend)
	b.controller.SetRegime(analysis)
	observ.Log("regime_classified", map[string]any{
		"cycle_id":   cycleID,
		"regime":     string(analysis.Regime),
		"confidence": analysis.Confidence,
		"strategy":   string(analysis.RecommendedStrategy),
		"modifier":   analysis.PositionSizeModifier,
	})
	observ.SetGauge("regime_confidence", analysis.Confidence, nil)

	portfolio, err := b.broker.Positions(ctx)
	if err != nil {
		return err
	}
	cash, err := b.broker.AvailableCash(ctx, "EUR")
	if err != nil {
		return err
	}

	equity := cash
	for _, pos := range portfolio {
		equity += float64(pos.Quantity) * pos.MarketPrice
	}
	b.sizer.UpdateCapital(equity)
	if equity > b.peakEquity {
		b.peakEquity = equity
	}

	breached, drawdown := b.sizer.CheckDrawdown(equity, b.peakEquity, b.cfg.Risk.MaxDrawdownPct)
	observ.SetGauge("portfolio_drawdown", drawdown, nil)
	if breached {
		observ.Log("drawdown_limit_breached", map[string]any{
			"cycle_id": cycleID,
			"drawdown": drawdown,
			"equity":   equity,
			"peak":     b.peakEquity,
		})
	}

	currentRisk := positions.EstimateRisk(portfolio, equity)
	observ.Log("portfolio_snapshot", map[string]any{
		"cycle_id":       cycleID,
		"cash":           cash,
		"equity":         equity,
		"positions":      len(portfolio),
		"portfolio_risk": currentRisk,
	})

	if len(portfolio) > 0 {
		b.controller.EvaluateExits(ctx, portfolio)
	}

	candidates := b.controller.SeekOpportunities(ctx, b.cfg.Trading.Watchlist, portfolio, cash)
	observ.Log("cycle_finished", map[string]any{
		"cycle_id":   cycleID,
		"candidates": len(candidates),
		"elapsed_ms": b.now().Sub(started).Milliseconds(),
	})
	observ.Observe("cycle_duration_ms", float64(b.now().Sub(started).Milliseconds()), nil)

	return nil
}

// vixLevel reads the volatility index from the broker and degrades to the
// long-run default when the lookup fails.
func (b *Bot) vixLevel(ctx context.Context) float64 {
	vix, err := b.broker.IndexLevel(ctx, "VIX")
	if err != nil || vix <= 0 {
		return defaultVIX
	}
	return vix
}

func (b *Bot) withinTradingHours(now time.Time) bool {
	local := now.In(b.location)
	start, _ := time.Parse("15:04", b.cfg.TradingHours.Start)
	end, _ := time.Parse("15:04", b.cfg.TradingHours.End)

	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return minutes >= startMin && minutes <= endMin
}

// sleepCtx waits for d and reports false when the context was cancelled
// before the wait completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
