package risk

import (
	"fmt"
	"math"
	"sync"

	"github.com/vorschlag/trading-bot/internal/observ"
)

// SizeRequest carries everything needed to size one entry.
type SizeRequest struct {
	Symbol               string
	EntryPrice           float64
	Strategy             string // momentum, mean_reversion, hedge or other
	SignalStrength       float64
	Exchange             string
	CurrentPortfolioRisk float64
	Volatility           float64 // 0 means unknown, fixed stops apply
}

// SizeResult is the sizing decision. A non-viable result carries the reason
// and still reports the computed stop and target where they were reached.
type SizeResult struct {
	Shares          int
	PositionValue   float64
	RiskAmount      float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Viable          bool
	Reason          string
}

// PositionExposure is one holding's contribution to portfolio VaR.
type PositionExposure struct {
	Value      float64
	Volatility float64
}

// Manager sizes positions against risk limits over a mutable capital base.
type Manager struct {
	mu      sync.RWMutex
	capital float64

	maxPositionPct  float64
	maxRiskPerTrade float64
	maxPortfolio    float64

	costs CostCalculator
}

func NewManager(capital, maxPositionPct, maxRiskPerTradePct, maxPortfolioRiskPct float64) *Manager {
	return &Manager{
		capital:         capital,
		maxPositionPct:  maxPositionPct,
		maxRiskPerTrade: maxRiskPerTradePct,
		maxPortfolio:    maxPortfolioRiskPct,
	}
}

// UpdateCapital replaces the capital base, typically each cycle from the
// broker's reported cash.
func (m *Manager) UpdateCapital(capital float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capital = capital
	observ.SetGauge("risk_capital", capital, nil)
}

func (m *Manager) Capital() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capital
}

// StopTargetPcts returns the stop-loss and take-profit fractions for a
// strategy. A positive volatility drives dynamic stops for momentum and
// mean reversion.
func StopTargetPcts(strategy string, volatility float64) (stopPct, targetPct float64) {
	switch strategy {
	case "momentum":
		stopPct = 0.05
		if volatility > 0 {
			stopPct = volatility * 1.5
		}
		targetPct = stopPct * 3
	case "mean_reversion":
		stopPct = 0.03
		if volatility > 0 {
			stopPct = volatility * 1.0
		}
		targetPct = stopPct * 2
	case "hedge":
		stopPct = 0.07
		targetPct = 0.10
	default:
		stopPct = 0.04
		targetPct = 0.08
	}
	return stopPct, targetPct
}

// SizePosition computes the share count for an entry, or a rejection with
// its reason. Portfolio risk at or above the limit rejects immediately.
func (m *Manager) SizePosition(req SizeRequest) SizeResult {
	m.mu.RLock()
	capital := m.capital
	m.mu.RUnlock()

	if req.CurrentPortfolioRisk >= m.maxPortfolio {
		return SizeResult{Viable: false, Reason: "portfolio risk limit reached"}
	}

	stopPct, targetPct := StopTargetPcts(req.Strategy, req.Volatility)
	stopPrice := req.EntryPrice * (1 - stopPct)
	targetPrice := req.EntryPrice * (1 + targetPct)
	riskPerShare := req.EntryPrice - stopPrice

	if riskPerShare <= 0 {
		return SizeResult{
			StopLossPrice:   stopPrice,
			TakeProfitPrice: targetPrice,
			Viable:          false,
			Reason:          "invalid stop-loss",
		}
	}

	maxRiskAmount := capital * m.maxRiskPerTrade
	sharesByRisk := int(maxRiskAmount / riskPerShare)

	maxPositionValue := capital * m.maxPositionPct
	sharesByCapital := int(maxPositionValue / req.EntryPrice)

	baseShares := sharesByRisk
	if sharesByCapital < baseShares {
		baseShares = sharesByCapital
	}
	shares := int(float64(baseShares) * req.SignalStrength)

	if shares < 1 {
		return SizeResult{
			StopLossPrice:   stopPrice,
			TakeProfitPrice: targetPrice,
			Viable:          false,
			Reason:          "position too small after adjustment",
		}
	}

	positionValue := float64(shares) * req.EntryPrice
	riskAmount := float64(shares) * riskPerShare

	costs := m.costs.StockCost(req.Exchange, shares, req.EntryPrice)
	expectedReturn := targetPct * 100
	if !m.costs.Viable(costs, expectedReturn, 2.0) {
		return SizeResult{
			StopLossPrice:   stopPrice,
			TakeProfitPrice: targetPrice,
			Viable:          false,
			Reason: fmt.Sprintf("costs too high: %.2f%% breakeven, %.1f%% expected",
				costs.BreakevenMove, expectedReturn),
		}
	}

	return SizeResult{
		Shares:          shares,
		PositionValue:   positionValue,
		RiskAmount:      riskAmount,
		StopLossPrice:   math.Round(stopPrice*100) / 100,
		TakeProfitPrice: math.Round(targetPrice*100) / 100,
		Viable:          true,
		Reason: fmt.Sprintf("OK - %d shares, commission %.2f, breakeven %.2f%%",
			shares, costs.Commission, costs.BreakevenMove),
	}
}

// CheckDrawdown reports whether the drawdown limit is breached and the
// current drawdown fraction.
func (m *Manager) CheckDrawdown(currentEquity, peakEquity, maxDrawdown float64) (bool, float64) {
	if peakEquity <= 0 {
		return false, 0.0
	}
	drawdown := (peakEquity - currentEquity) / peakEquity
	return drawdown >= maxDrawdown, drawdown
}

var varZScores = map[float64]float64{
	0.90: 1.28,
	0.95: 1.65,
	0.99: 2.33,
}

// PortfolioVaR is a simplified value-at-risk ignoring correlations: the
// square root of the sum of squared per-position VaRs.
func (m *Manager) PortfolioVaR(positions []PositionExposure, confidence float64) float64 {
	if len(positions) == 0 {
		return 0.0
	}

	z, ok := varZScores[confidence]
	if !ok {
		z = 1.65
	}

	var sumSquares float64
	for _, pos := range positions {
		vol := pos.Volatility
		if vol == 0 {
			vol = 0.02
		}
		positionVaR := pos.Value * vol * z
		sumSquares += positionVaR * positionVaR
	}
	return math.Sqrt(sumSquares)
}
