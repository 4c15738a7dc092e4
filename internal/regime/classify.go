package regime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vorschlag/trading-bot/internal/news"
	"github.com/vorschlag/trading-bot/internal/observ"
)

const (
	digestWindow      = 48 * time.Hour
	digestMaxArticles = 25
)

const marketPrompt = `You are an experienced market analyst. Review the market news below and
determine the current market regime.

## MARKET NEWS:
%s

## ADDITIONAL MARKET DATA:
- VIX (volatility index): %.2f
- S&P 500 trend (20 days): %s
- Current date: %s

## TASK:
Determine:

1. MARKET REGIME, one of:
   - TRENDING_BULLISH: clear uptrend, positive news dominates, risk-on
   - TRENDING_BEARISH: clear downtrend, negative news, risk-off
   - RANGE_BOUND: mixed signals, no clear direction, consolidation
   - HIGH_UNCERTAINTY: contradictory news, major events ahead
   - CRISIS: acute crisis, panic, systemic risk

2. STRATEGY:
   - momentum: trend following (TRENDING_BULLISH or TRENDING_BEARISH)
   - mean_reversion: reversion to mean (RANGE_BOUND)
   - hedge: protection (HIGH_UNCERTAINTY with bearish lean)
   - cash: hold liquidity (CRISIS)

3. SECTOR ANALYSIS: which sectors to favor or avoid.

4. RISK ASSESSMENT: which risks matter now.

## RESPONSE FORMAT (JSON):
{
    "regime": "TRENDING_BULLISH|TRENDING_BEARISH|RANGE_BOUND|HIGH_UNCERTAINTY|CRISIS",
    "confidence": 0.0-1.0,
    "reasoning": "short justification (2-3 sentences)",
    "recommended_strategy": "momentum|mean_reversion|hedge|cash",
    "position_size_modifier": 0.0-1.0,
    "sector_recommendations": [
        {"sector": "technology", "stance": "overweight|neutral|underweight|avoid", "reason": "..."}
    ],
    "risk_level": "low|medium|high|extreme",
    "key_risks": ["risk 1", "risk 2"],
    "outlook_horizon": "e.g. 1-2 weeks",
    "key_events_ahead": ["event 1", "event 2"]
}

Respond with ONLY the JSON object, no extra text.`

const symbolPrompt = `You are an equity analyst. Review the news for %s below.

## NEWS FOR %s:
%s

## CURRENT MARKET REGIME: %s

## TECHNICAL DATA:
- Current price: %s
- 20-day SMA: %s
- RSI (14): %s
- Volume vs average: %sx

## TASK:
Give a trading recommendation based on the news and technicals.

## RESPONSE FORMAT (JSON):
{
    "recommendation": "strong_buy|buy|hold|sell|strong_sell",
    "confidence": 0.0-1.0,
    "reasoning": "justification",
    "entry_strategy": "momentum|mean_reversion|none",
    "key_catalysts": ["catalyst 1", "catalyst 2"],
    "risks": ["risk 1", "risk 2"],
    "time_horizon": "short|medium|long",
    "stop_loss_suggestion_pct": 0.0-0.1,
    "target_price_suggestion_pct": 0.0-0.3
}

Respond with ONLY the JSON object.`

// Technicals carries the indicator snapshot included in symbol prompts.
// Unset fields render as N/A.
type Technicals struct {
	Price       *float64
	SMA20       *float64
	RSI         *float64
	VolumeRatio *float64
}

func fmtTechnical(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Analyzer turns fused news into a regime classification via the oracle.
type Analyzer struct {
	oracle Oracle
	now    func() time.Time
}

func NewAnalyzer(oracle Oracle) *Analyzer {
	return &Analyzer{oracle: oracle, now: time.Now}
}

// Classify runs one market regime classification. It never returns an error:
// any oracle or parse failure yields the defensive fallback analysis.
func (a *Analyzer) Classify(ctx context.Context, fused *news.FusedNews, vix float64, sp500Trend string) RegimeAnalysis {
	digest := fused.FormatDigest(digestWindow, digestMaxArticles)
	prompt := fmt.Sprintf(marketPrompt, digest, vix, sp500Trend, a.now().UTC().Format("2006-01-02 15:04"))

	raw, err := a.oracle.Complete(ctx, prompt)
	if err != nil {
		observ.Log("regime_oracle_error", map[string]any{"error": err.Error()})
		return a.fallback(err.Error(), len(fused.Articles))
	}

	analysis, err := a.parseMarket(raw, len(fused.Articles))
	if err != nil {
		observ.Log("regime_parse_error", map[string]any{"error": err.Error()})
		return a.fallback(err.Error(), len(fused.Articles))
	}

	observ.IncCounter("regime_classifications_total", map[string]string{"regime": string(analysis.Regime)})
	return analysis
}

type marketResponse struct {
	Regime                string                 `json:"regime"`
	Confidence            *float64               `json:"confidence"`
	Reasoning             string                 `json:"reasoning"`
	RecommendedStrategy   string                 `json:"recommended_strategy"`
	PositionSizeModifier  *float64               `json:"position_size_modifier"`
	SectorRecommendations []SectorRecommendation `json:"sector_recommendations"`
	RiskLevel             string                 `json:"risk_level"`
	KeyRisks              []string               `json:"key_risks"`
	OutlookHorizon        string                 `json:"outlook_horizon"`
	KeyEventsAhead        []string               `json:"key_events_ahead"`
}

func (a *Analyzer) parseMarket(raw string, newsCount int) (RegimeAnalysis, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return RegimeAnalysis{}, err
	}

	var resp marketResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return RegimeAnalysis{}, err
	}

	// Absent fields get defaults; only unrecognized tokens are a parse failure.
	regimeStr := strings.ToUpper(strings.TrimSpace(resp.Regime))
	if regimeStr == "" {
		regimeStr = string(RangeBound)
	}
	regime, ok := ParseRegime(regimeStr)
	if !ok {
		return RegimeAnalysis{}, fmt.Errorf("unknown regime %q", resp.Regime)
	}
	strategyStr := strings.ToLower(strings.TrimSpace(resp.RecommendedStrategy))
	if strategyStr == "" {
		strategyStr = string(StrategyMeanReversion)
	}
	strategy, ok := ParseStrategy(strategyStr)
	if !ok {
		return RegimeAnalysis{}, fmt.Errorf("unknown strategy %q", resp.RecommendedStrategy)
	}
	riskLevel, ok := ParseRiskLevel(strings.ToLower(strings.TrimSpace(resp.RiskLevel)))
	if !ok {
		riskLevel = RiskMedium
	}

	confidence := 0.5
	if resp.Confidence != nil {
		confidence = clamp01(*resp.Confidence)
	}
	modifier := 0.5
	if resp.PositionSizeModifier != nil {
		modifier = clamp01(*resp.PositionSizeModifier)
	}

	return RegimeAnalysis{
		Regime:                regime,
		Confidence:            confidence,
		Reasoning:             resp.Reasoning,
		RecommendedStrategy:   strategy,
		PositionSizeModifier:  modifier,
		SectorRecommendations: resp.SectorRecommendations,
		RiskLevel:             riskLevel,
		KeyRisks:              resp.KeyRisks,
		OutlookHorizon:        resp.OutlookHorizon,
		KeyEventsAhead:        resp.KeyEventsAhead,
		AnalyzedAt:            a.now().UTC(),
		NewsCount:             newsCount,
	}, nil
}

// fallback is the neutral defensive stance used whenever classification fails.
func (a *Analyzer) fallback(reason string, newsCount int) RegimeAnalysis {
	observ.IncCounter("regime_fallbacks_total", nil)
	return RegimeAnalysis{
		Regime:               HighUncertainty,
		Confidence:           0.3,
		Reasoning:            fmt.Sprintf("analysis failed: %s", reason),
		RecommendedStrategy:  StrategyCash,
		PositionSizeModifier: 0.25,
		RiskLevel:            RiskHigh,
		KeyRisks:             []string{"market analysis unavailable"},
		OutlookHorizon:       "unknown",
		AnalyzedAt:           a.now().UTC(),
		NewsCount:            newsCount,
	}
}

// ClassifySymbol produces a per-symbol recommendation. No symbol news means
// a neutral hold without an oracle call.
func (a *Analyzer) ClassifySymbol(ctx context.Context, symbol string, fused *news.FusedNews, current Regime, tech Technicals) SymbolAdvice {
	symbolNews := fused.ForSymbol(symbol)
	if len(symbolNews) == 0 {
		return SymbolAdvice{
			Recommendation: "hold",
			Confidence:     0.3,
			Reasoning:      "no relevant news found",
			EntryStrategy:  "none",
		}
	}

	if len(symbolNews) > 10 {
		symbolNews = symbolNews[:10]
	}
	var lines []string
	for _, art := range symbolNews {
		line := "- " + art.Headline
		if art.SentimentScore != nil {
			line += fmt.Sprintf(" [%+.2f]", *art.SentimentScore)
		}
		lines = append(lines, line)
	}

	prompt := fmt.Sprintf(symbolPrompt,
		symbol, symbol, strings.Join(lines, "\n"), current,
		fmtTechnical(tech.Price), fmtTechnical(tech.SMA20),
		fmtTechnical(tech.RSI), fmtTechnical(tech.VolumeRatio))

	raw, err := a.oracle.Complete(ctx, prompt)
	if err != nil {
		observ.Log("symbol_oracle_error", map[string]any{"symbol": symbol, "error": err.Error()})
		return symbolFallback()
	}

	body, err := extractJSON(raw)
	if err != nil {
		return symbolFallback()
	}
	var advice SymbolAdvice
	if err := json.Unmarshal([]byte(body), &advice); err != nil {
		return symbolFallback()
	}
	advice.Confidence = clamp01(advice.Confidence)
	if advice.Recommendation == "" {
		advice.Recommendation = "hold"
	}
	if advice.EntryStrategy == "" {
		advice.EntryStrategy = "none"
	}
	return advice
}

func symbolFallback() SymbolAdvice {
	return SymbolAdvice{
		Recommendation: "hold",
		Confidence:     0.3,
		Reasoning:      "analysis failed",
		EntryStrategy:  "none",
	}
}

// extractJSON strips markdown fences and returns the first balanced JSON
// object in the completion.
func extractJSON(raw string) (string, error) {
	s := raw
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
