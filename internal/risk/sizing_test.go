package risk

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(50000, 0.05, 0.01, 0.10)
}

func TestSizePositionMomentumScenario(t *testing.T) {
	m := newTestManager()

	got := m.SizePosition(SizeRequest{
		Symbol:               "AAPL",
		EntryPrice:           150.0,
		Strategy:             "momentum",
		SignalStrength:       0.8,
		Exchange:             "NASDAQ",
		CurrentPortfolioRisk: 0.02,
	})

	require.True(t, got.Viable, "reason: %s", got.Reason)
	assert.Equal(t, 142.50, got.StopLossPrice)
	assert.Equal(t, 172.50, got.TakeProfitPrice)

	// risk cap: 500 / 7.50 = 66 shares; capital cap: 2500 / 150 = 16; 16*0.8 = 12.
	assert.Equal(t, 12, got.Shares)
	assert.Equal(t, 1800.0, got.PositionValue)
	assert.Equal(t, 90.0, got.RiskAmount)
	assert.True(t, strings.HasPrefix(got.Reason, "OK"))
}

func TestSizePositionPortfolioRiskGateInclusive(t *testing.T) {
	m := newTestManager()

	got := m.SizePosition(SizeRequest{
		Symbol:               "AAPL",
		EntryPrice:           150.0,
		Strategy:             "momentum",
		SignalStrength:       0.8,
		Exchange:             "NASDAQ",
		CurrentPortfolioRisk: 0.10, // exactly at the limit
	})

	assert.False(t, got.Viable)
	assert.Equal(t, "portfolio risk limit reached", got.Reason)
	assert.Equal(t, 0, got.Shares)
}

func TestSizePositionTooSmall(t *testing.T) {
	m := NewManager(1000, 0.05, 0.01, 0.10)

	// capital cap: 50 / 150 = 0 shares.
	got := m.SizePosition(SizeRequest{
		Symbol:               "AAPL",
		EntryPrice:           150.0,
		Strategy:             "momentum",
		SignalStrength:       1.0,
		Exchange:             "NASDAQ",
		CurrentPortfolioRisk: 0.0,
	})

	assert.False(t, got.Viable)
	assert.Equal(t, "position too small after adjustment", got.Reason)
	// The rejection still reports stop and target.
	assert.Equal(t, 142.50, math.Round(got.StopLossPrice*100)/100)
}

func TestSizePositionVolatilityDrivenStops(t *testing.T) {
	m := newTestManager()

	got := m.SizePosition(SizeRequest{
		Symbol:               "SAP",
		EntryPrice:           100.0,
		Strategy:             "momentum",
		SignalStrength:       1.0,
		Exchange:             "XETRA",
		CurrentPortfolioRisk: 0.0,
		Volatility:           0.02, // 1.5x vol = 3% stop, 9% target
	})

	require.True(t, got.Viable, "reason: %s", got.Reason)
	assert.Equal(t, 97.0, got.StopLossPrice)
	assert.Equal(t, 109.0, got.TakeProfitPrice)
}

func TestSizePositionStrategyTable(t *testing.T) {
	cases := []struct {
		strategy  string
		vol       float64
		stopPct   float64
		targetPct float64
	}{
		{"momentum", 0, 0.05, 0.15},
		{"momentum", 0.04, 0.06, 0.18},
		{"mean_reversion", 0, 0.03, 0.06},
		{"mean_reversion", 0.025, 0.025, 0.05},
		{"hedge", 0, 0.07, 0.10},
		{"hedge", 0.04, 0.07, 0.10}, // hedge ignores volatility
		{"unknown", 0, 0.04, 0.08},
	}
	for _, tc := range cases {
		stop, target := StopTargetPcts(tc.strategy, tc.vol)
		assert.InDelta(t, tc.stopPct, stop, 1e-9, "%s stop", tc.strategy)
		assert.InDelta(t, tc.targetPct, target, 1e-9, "%s target", tc.strategy)
	}
}

func TestSizePositionCostRejection(t *testing.T) {
	m := NewManager(50000, 0.05, 0.01, 0.10)

	// Penny position: mean_reversion expects 6%, but commissions on a tiny
	// order dwarf the notional.
	got := m.SizePosition(SizeRequest{
		Symbol:               "PENNY",
		EntryPrice:           2.0,
		Strategy:             "mean_reversion",
		SignalStrength:       0.01,
		Exchange:             "XETRA",
		CurrentPortfolioRisk: 0.0,
	})

	assert.False(t, got.Viable)
	assert.Contains(t, got.Reason, "costs too high")
}

func TestUpdateCapitalChangesSizing(t *testing.T) {
	m := newTestManager()
	m.UpdateCapital(100000)
	assert.Equal(t, 100000.0, m.Capital())

	got := m.SizePosition(SizeRequest{
		Symbol:               "AAPL",
		EntryPrice:           150.0,
		Strategy:             "momentum",
		SignalStrength:       0.8,
		Exchange:             "NASDAQ",
		CurrentPortfolioRisk: 0.02,
	})
	require.True(t, got.Viable)
	// capital cap doubles: 5000 / 150 = 33; 33*0.8 = 26.
	assert.Equal(t, 26, got.Shares)
}

func TestCheckDrawdown(t *testing.T) {
	m := newTestManager()

	breached, dd := m.CheckDrawdown(84000, 100000, 0.15)
	assert.True(t, breached)
	assert.InDelta(t, 0.16, dd, 1e-9)

	breached, dd = m.CheckDrawdown(90000, 100000, 0.15)
	assert.False(t, breached)
	assert.InDelta(t, 0.10, dd, 1e-9)

	// Limit boundary is inclusive.
	breached, _ = m.CheckDrawdown(85000, 100000, 0.15)
	assert.True(t, breached)

	breached, dd = m.CheckDrawdown(1000, 0, 0.15)
	assert.False(t, breached)
	assert.Equal(t, 0.0, dd)
}

func TestPortfolioVaR(t *testing.T) {
	m := newTestManager()

	assert.Equal(t, 0.0, m.PortfolioVaR(nil, 0.95))

	single := []PositionExposure{{Value: 10000, Volatility: 0.02}}
	assert.InDelta(t, 330.0, m.PortfolioVaR(single, 0.95), 1e-9)

	// Default volatility applies when absent.
	defaulted := []PositionExposure{{Value: 10000}}
	assert.InDelta(t, 330.0, m.PortfolioVaR(defaulted, 0.95), 1e-9)

	// Unknown confidence falls back to the 95% z-score.
	assert.InDelta(t, 330.0, m.PortfolioVaR(single, 0.80), 1e-9)

	two := []PositionExposure{
		{Value: 10000, Volatility: 0.02},
		{Value: 20000, Volatility: 0.03},
	}
	want := math.Sqrt(330.0*330.0 + 990.0*990.0)
	assert.InDelta(t, want, m.PortfolioVaR(two, 0.95), 1e-9)

	// Stress z-scores.
	assert.InDelta(t, 10000*0.02*2.33, m.PortfolioVaR(single, 0.99), 1e-9)
	assert.InDelta(t, 10000*0.02*1.28, m.PortfolioVaR(single, 0.90), 1e-9)
}
