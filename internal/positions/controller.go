package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vorschlag/trading-bot/internal/adapters"
	"github.com/vorschlag/trading-bot/internal/observ"
	"github.com/vorschlag/trading-bot/internal/regime"
	"github.com/vorschlag/trading-bot/internal/risk"
)

const fillPollInterval = 200 * time.Millisecond

// ExitDecision records why a position was or was not closed.
type ExitDecision struct {
	Symbol string
	Exit   bool
	Reason string
}

// Candidate is a sized, viable entry surfaced by SeekOpportunities.
type Candidate struct {
	Symbol     string
	EntryPrice float64
	Sizing     risk.SizeResult
	OrderID    string
}

// Controller applies the active regime to position entries and exits.
// It holds only the current cycle's analysis; SetRegime replaces it each
// cycle before evaluation.
type Controller struct {
	mu      sync.RWMutex
	current regime.RegimeAnalysis

	broker          adapters.Broker
	sizer           *risk.Manager
	minTradeCapital float64
	defaultExchange string
	placeOrders     bool
}

func NewController(broker adapters.Broker, sizer *risk.Manager, minTradeCapital float64, exchange string, placeOrders bool) *Controller {
	return &Controller{
		broker:          broker,
		sizer:           sizer,
		minTradeCapital: minTradeCapital,
		defaultExchange: exchange,
		placeOrders:     placeOrders,
	}
}

// SetRegime installs the analysis for the coming evaluation pass.
func (c *Controller) SetRegime(analysis regime.RegimeAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = analysis
}

func (c *Controller) Regime() regime.RegimeAnalysis {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// checkExit decides whether one position should close under the active
// regime. Crisis closes everything; otherwise the strategy's stop and
// target thresholds apply to the unrealized P&L fraction.
func (c *Controller) checkExit(pos adapters.Position) (bool, string) {
	current := c.Regime()

	if current.Regime == regime.Crisis {
		return true, "market regime: CRISIS"
	}

	stopPct, targetPct := risk.StopTargetPcts(string(current.RecommendedStrategy), 0)
	pnlPct := pos.UnrealizedPnLPct()

	if pnlPct <= -stopPct {
		return true, fmt.Sprintf("stop-loss reached (%+.1f%%)", pnlPct*100)
	}
	if pnlPct >= targetPct {
		return true, fmt.Sprintf("take-profit reached (%+.1f%%)", pnlPct*100)
	}
	return false, ""
}

// EvaluateExits walks the portfolio and closes every position whose exit
// condition holds. Close orders are polled to completion.
func (c *Controller) EvaluateExits(ctx context.Context, portfolio []adapters.Position) []ExitDecision {
	decisions := make([]ExitDecision, 0, len(portfolio))
	for _, pos := range portfolio {
		exit, reason := c.checkExit(pos)
		decisions = append(decisions, ExitDecision{Symbol: pos.Symbol, Exit: exit, Reason: reason})
		if !exit {
			continue
		}

		observ.Log("position_exit", map[string]any{
			"symbol":  pos.Symbol,
			"reason":  reason,
			"pnl_pct": pos.UnrealizedPnLPct(),
		})
		observ.IncCounter("position_exits_total", map[string]string{"symbol": pos.Symbol})

		if err := c.closePosition(ctx, pos); err != nil {
			observ.Log("position_close_error", map[string]any{"symbol": pos.Symbol, "error": err.Error()})
		}
	}
	return decisions
}

func (c *Controller) closePosition(ctx context.Context, pos adapters.Position) error {
	side := adapters.SideSell
	quantity := pos.Quantity
	if quantity < 0 {
		side = adapters.SideBuy
		quantity = -quantity
	}

	orderID, err := c.broker.PlaceOrder(ctx, adapters.OrderRequest{
		Symbol:   pos.Symbol,
		Side:     side,
		Quantity: quantity,
	})
	if err != nil {
		return err
	}

	state, err := adapters.AwaitOrder(ctx, c.broker, orderID, fillPollInterval)
	if err != nil {
		return err
	}
	if state.Status != adapters.OrderFilled {
		return fmt.Errorf("close order %s ended %s", orderID, state.Status)
	}

	observ.Log("position_closed", map[string]any{
		"symbol":     pos.Symbol,
		"fill_price": state.AvgFillPrice,
	})
	return nil
}

// shouldSeek is the entry gate: no new positions in a crisis, without
// enough free cash, or when the regime calls for heavily reduced size.
func (c *Controller) shouldSeek(cash float64) bool {
	current := c.Regime()
	if current.Regime == regime.Crisis {
		return false
	}
	if cash < c.minTradeCapital {
		return false
	}
	if current.PositionSizeModifier < 0.25 {
		return false
	}
	return true
}

// SeekOpportunities scans the watchlist for unheld symbols, sizes each
// against the active regime and returns the viable candidates. When order
// placement is enabled the entries are also submitted and polled.
func (c *Controller) SeekOpportunities(ctx context.Context, watchlist []string, portfolio []adapters.Position, cash float64) []Candidate {
	if !c.shouldSeek(cash) {
		current := c.Regime()
		observ.Log("seek_skipped", map[string]any{
			"regime":   string(current.Regime),
			"cash":     cash,
			"modifier": current.PositionSizeModifier,
		})
		return nil
	}

	held := make(map[string]bool, len(portfolio))
	for _, pos := range portfolio {
		held[pos.Symbol] = true
	}

	current := c.Regime()
	portfolioRisk := EstimateRisk(portfolio, c.sizer.Capital())

	var candidates []Candidate
	for _, symbol := range watchlist {
		if held[symbol] {
			continue
		}

		price, err := c.broker.Price(ctx, symbol)
		if err != nil || price <= 0 {
			if err != nil {
				observ.Log("price_lookup_error", map[string]any{"symbol": symbol, "error": err.Error()})
			}
			continue
		}

		sizing := c.sizer.SizePosition(risk.SizeRequest{
			Symbol:               symbol,
			EntryPrice:           price,
			Strategy:             string(current.RecommendedStrategy),
			SignalStrength:       current.Confidence,
			Exchange:             c.defaultExchange,
			CurrentPortfolioRisk: portfolioRisk,
		})
		if !sizing.Viable {
			observ.Log("candidate_skipped", map[string]any{"symbol": symbol, "reason": sizing.Reason})
			continue
		}

		cand := Candidate{Symbol: symbol, EntryPrice: price, Sizing: sizing}
		if c.placeOrders {
			orderID, err := c.openPosition(ctx, symbol, sizing.Shares)
			if err != nil {
				observ.Log("position_open_error", map[string]any{"symbol": symbol, "error": err.Error()})
				continue
			}
			cand.OrderID = orderID
		}

		observ.Log("candidate_entered", map[string]any{
			"symbol":      symbol,
			"entry_price": price,
			"shares":      sizing.Shares,
			"stop_loss":   sizing.StopLossPrice,
			"take_profit": sizing.TakeProfitPrice,
		})
		observ.IncCounter("position_entries_total", map[string]string{"symbol": symbol})
		candidates = append(candidates, cand)
	}
	return candidates
}

func (c *Controller) openPosition(ctx context.Context, symbol string, shares int) (string, error) {
	orderID, err := c.broker.PlaceOrder(ctx, adapters.OrderRequest{
		Symbol:   symbol,
		Side:     adapters.SideBuy,
		Quantity: shares,
	})
	if err != nil {
		return "", err
	}

	state, err := adapters.AwaitOrder(ctx, c.broker, orderID, fillPollInterval)
	if err != nil {
		return orderID, err
	}
	if state.Status != adapters.OrderFilled {
		return orderID, fmt.Errorf("entry order %s ended %s", orderID, state.Status)
	}
	return orderID, nil
}

// EstimateRisk approximates current portfolio risk as 5% of gross exposure
// over the capital base.
func EstimateRisk(portfolio []adapters.Position, capital float64) float64 {
	if len(portfolio) == 0 || capital <= 0 {
		return 0.0
	}
	var total float64
	for _, pos := range portfolio {
		value := float64(pos.Quantity) * pos.MarketPrice
		if value < 0 {
			value = -value
		}
		total += value * 0.05
	}
	return total / capital
}
