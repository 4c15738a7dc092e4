package risk

import (
	"math"
	"testing"
)

func TestStockCostVenues(t *testing.T) {
	var calc CostCalculator

	t.Run("xetra percentage with floor and cap", func(t *testing.T) {
		costs := calc.StockCost("XETRA", 100, 50.0) // 5000 order value
		if costs.Commission != 5.0 {
			t.Errorf("commission = %v, want 5.0", costs.Commission)
		}

		// Tiny order hits the minimum.
		costs = calc.StockCost("XETRA", 10, 20.0)
		if costs.Commission != 4.0 {
			t.Errorf("small order commission = %v, want floor 4.0", costs.Commission)
		}

		// Huge order hits the cap.
		costs = calc.StockCost("XETRA", 2000, 100.0)
		if costs.Commission != 99.0 {
			t.Errorf("large order commission = %v, want cap 99.0", costs.Commission)
		}
	})

	t.Run("us per-share with minimum", func(t *testing.T) {
		costs := calc.StockCost("NASDAQ", 50, 150.0)
		if costs.Commission != 2.0 {
			t.Errorf("commission = %v, want minimum 2.0", costs.Commission)
		}

		costs = calc.StockCost("NYSE", 500, 10.0)
		if costs.Commission != 5.0 {
			t.Errorf("commission = %v, want 500*0.01 = 5.0", costs.Commission)
		}
	})

	t.Run("lse percentage with minimum", func(t *testing.T) {
		costs := calc.StockCost("LSE", 100, 20.0) // 2000 order value
		if costs.Commission != 6.0 {
			t.Errorf("commission = %v, want floor 6.0", costs.Commission)
		}
	})

	t.Run("unknown venue falls back", func(t *testing.T) {
		costs := calc.StockCost("TSX", 100, 100.0) // 10000
		if costs.Commission != 10.0 {
			t.Errorf("commission = %v, want 10.0", costs.Commission)
		}
	})
}

func TestStockCostSpreadBands(t *testing.T) {
	var calc CostCalculator

	// 5000 notional: 0.1% band.
	if got := calc.StockCost("XETRA", 100, 50.0).SpreadEstimate; got != 5.0 {
		t.Errorf("small order spread = %v, want 5.0", got)
	}
	// 50000 notional: 0.05% band.
	if got := calc.StockCost("XETRA", 1000, 50.0).SpreadEstimate; got != 25.0 {
		t.Errorf("mid order spread = %v, want 25.0", got)
	}
	// 200000 notional: 0.02% band.
	if got := calc.StockCost("XETRA", 4000, 50.0).SpreadEstimate; got != 40.0 {
		t.Errorf("large order spread = %v, want 40.0", got)
	}
}

func TestStockCostBreakeven(t *testing.T) {
	var calc CostCalculator

	costs := calc.StockCost("XETRA", 100, 50.0)
	// commission 5 + spread 5, doubled = 20 roundtrip on 5000.
	if costs.TotalRoundtrip != 20.0 {
		t.Errorf("roundtrip = %v, want 20.0", costs.TotalRoundtrip)
	}
	if costs.BreakevenMove != 0.4 {
		t.Errorf("breakeven = %v, want 0.4", costs.BreakevenMove)
	}

	zero := calc.StockCost("XETRA", 0, 50.0)
	if !math.IsInf(zero.BreakevenMove, 1) {
		t.Errorf("zero notional breakeven = %v, want +Inf", zero.BreakevenMove)
	}
}

func TestOptionCost(t *testing.T) {
	var calc CostCalculator

	eu := calc.OptionCost("EUREX", 3)
	if eu.Commission != 6.0 {
		t.Errorf("EUREX commission = %v, want 6.0", eu.Commission)
	}

	us := calc.OptionCost("CBOE", 2)
	if us.Commission != 1.3 {
		t.Errorf("US commission = %v, want 1.3", us.Commission)
	}
	if us.TotalRoundtrip != (1.3+10.0)*2 {
		t.Errorf("roundtrip = %v", us.TotalRoundtrip)
	}
}

func TestViableGate(t *testing.T) {
	var calc CostCalculator
	costs := TradeCosts{BreakevenMove: 2.0}

	if calc.Viable(costs, 4.0, 2.0) {
		t.Error("expected return equal to the hurdle must not pass")
	}
	if !calc.Viable(costs, 4.01, 2.0) {
		t.Error("expected return above the hurdle should pass")
	}
}
