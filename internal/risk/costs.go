package risk

import "math"

// TradeCosts itemizes the estimated friction for one trade.
type TradeCosts struct {
	Commission     float64 // broker commission, one way
	SpreadEstimate float64 // estimated spread cost, one way
	TotalRoundtrip float64 // buy plus sell, commission plus spread
	BreakevenMove  float64 // percent move needed to cover the roundtrip
}

// Commission schedule for a CapTrader/IB style broker.
const (
	xetraRate = 0.001
	xetraMin  = 4.0
	xetraMax  = 99.0

	usPerShare = 0.01
	usMin      = 2.0

	ukRate = 0.001
	ukMin  = 6.0

	optionPerContractDE = 2.0
	optionPerContractUS = 0.65
)

// CostCalculator estimates commissions and spreads per venue.
type CostCalculator struct{}

// StockCost estimates the cost of an equity trade on the given exchange.
func (CostCalculator) StockCost(exchange string, quantity int, price float64) TradeCosts {
	orderValue := float64(quantity) * price

	var commission float64
	switch exchange {
	case "XETRA", "IBIS":
		commission = math.Max(xetraMin, math.Min(orderValue*xetraRate, xetraMax))
	case "NYSE", "NASDAQ", "ARCA", "SMART":
		commission = math.Max(usMin, float64(quantity)*usPerShare)
	case "LSE", "LSEETF":
		commission = math.Max(ukMin, orderValue*ukRate)
	default:
		commission = math.Max(4.0, orderValue*0.001)
	}

	// Spread widens as liquidity thins: small orders pay the most.
	var spread float64
	switch {
	case orderValue > 100000:
		spread = orderValue * 0.0002
	case orderValue > 10000:
		spread = orderValue * 0.0005
	default:
		spread = orderValue * 0.001
	}

	roundtrip := (commission + spread) * 2

	breakeven := math.Inf(1)
	if orderValue > 0 {
		breakeven = roundtrip / orderValue * 100
	}

	return TradeCosts{
		Commission:     commission,
		SpreadEstimate: spread,
		TotalRoundtrip: roundtrip,
		BreakevenMove:  breakeven,
	}
}

// OptionCost estimates the cost of an option trade by contract count.
func (CostCalculator) OptionCost(exchange string, contracts int) TradeCosts {
	var commission float64
	switch exchange {
	case "EUREX", "DTB":
		commission = float64(contracts) * optionPerContractDE
	default:
		commission = float64(contracts) * optionPerContractUS
	}

	// Option spreads dwarf the commission; rough per-contract estimate.
	spread := float64(contracts) * 5.0

	return TradeCosts{
		Commission:     commission,
		SpreadEstimate: spread,
		TotalRoundtrip: (commission + spread) * 2,
		BreakevenMove:  0,
	}
}

// Viable reports whether the expected return clears the cost hurdle with
// the required reward margin.
func (CostCalculator) Viable(costs TradeCosts, expectedReturnPct, minRewardRatio float64) bool {
	return expectedReturnPct > costs.BreakevenMove*minRewardRatio
}
