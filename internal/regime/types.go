package regime

import "time"

// Regime labels the prevailing market condition and drives strategy choice.
type Regime string

const (
	TrendingBullish Regime = "TRENDING_BULLISH"
	TrendingBearish Regime = "TRENDING_BEARISH"
	RangeBound      Regime = "RANGE_BOUND"
	HighUncertainty Regime = "HIGH_UNCERTAINTY"
	Crisis          Regime = "CRISIS"
)

// ParseRegime maps a response token to a known regime. The second return is
// false for anything outside the closed set.
func ParseRegime(s string) (Regime, bool) {
	switch Regime(s) {
	case TrendingBullish, TrendingBearish, RangeBound, HighUncertainty, Crisis:
		return Regime(s), true
	}
	return "", false
}

type Strategy string

const (
	StrategyMomentum      Strategy = "momentum"
	StrategyMeanReversion Strategy = "mean_reversion"
	StrategyHedge         Strategy = "hedge"
	StrategyCash          Strategy = "cash"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyMomentum, StrategyMeanReversion, StrategyHedge, StrategyCash:
		return Strategy(s), true
	}
	return "", false
}

type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return RiskLevel(s), true
	}
	return "", false
}

// SectorRecommendation is one sector stance from the classification response.
type SectorRecommendation struct {
	Sector string `json:"sector"`
	Stance string `json:"stance"`
	Reason string `json:"reason"`
}

// RegimeAnalysis is the full classification result consumed by the position
// controller and the sizing engine.
type RegimeAnalysis struct {
	Regime                Regime                 `json:"regime"`
	Confidence            float64                `json:"confidence"`
	Reasoning             string                 `json:"reasoning"`
	RecommendedStrategy   Strategy               `json:"recommended_strategy"`
	PositionSizeModifier  float64                `json:"position_size_modifier"`
	SectorRecommendations []SectorRecommendation `json:"sector_recommendations"`
	RiskLevel             RiskLevel              `json:"risk_level"`
	KeyRisks              []string               `json:"key_risks"`
	OutlookHorizon        string                 `json:"outlook_horizon"`
	KeyEventsAhead        []string               `json:"key_events_ahead"`
	AnalyzedAt            time.Time              `json:"analyzed_at"`
	NewsCount             int                    `json:"news_count"`
}

// SymbolAdvice is a single-symbol trading recommendation.
type SymbolAdvice struct {
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	EntryStrategy  string   `json:"entry_strategy"`
	KeyCatalysts   []string `json:"key_catalysts"`
	Risks          []string `json:"risks"`
	TimeHorizon    string   `json:"time_horizon"`
	StopLossPct    float64  `json:"stop_loss_suggestion_pct"`
	TargetPct      float64  `json:"target_price_suggestion_pct"`
}
