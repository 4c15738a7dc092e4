package regime

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vorschlag/trading-bot/internal/news"
)

type stubOracle struct {
	reply string
	err   error
	calls int
	seen  string
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.seen = prompt
	return s.reply, s.err
}

func testFused(t *testing.T, headlines ...string) *news.FusedNews {
	t.Helper()
	at := time.Now().UTC()
	var articles []news.Article
	for i, h := range headlines {
		articles = append(articles, news.NewArticle(h, "", "stub", "", at.Add(-time.Duration(i)*time.Minute)))
	}
	return &news.FusedNews{Articles: articles, FetchedAt: at}
}

const goodReply = `{
  "regime": "TRENDING_BULLISH",
  "confidence": 0.8,
  "reasoning": "positive news flow",
  "recommended_strategy": "momentum",
  "position_size_modifier": 0.9,
  "sector_recommendations": [{"sector": "technology", "stance": "overweight", "reason": "earnings"}],
  "risk_level": "medium",
  "key_risks": ["inflation"],
  "outlook_horizon": "1-2 weeks",
  "key_events_ahead": ["FOMC"]
}`

func TestClassifyParsesWellFormedReply(t *testing.T) {
	oracle := &stubOracle{reply: goodReply}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "Markets rally"), 18.5, "bullish")

	assert.Equal(t, TrendingBullish, got.Regime)
	assert.Equal(t, 0.8, got.Confidence)
	assert.Equal(t, StrategyMomentum, got.RecommendedStrategy)
	assert.Equal(t, 0.9, got.PositionSizeModifier)
	assert.Equal(t, RiskMedium, got.RiskLevel)
	require.Len(t, got.SectorRecommendations, 1)
	assert.Equal(t, "technology", got.SectorRecommendations[0].Sector)
	assert.Equal(t, 1, got.NewsCount)
}

func TestClassifyStripsMarkdownFences(t *testing.T) {
	oracle := &stubOracle{reply: "Here is my analysis:\n```json\n" + goodReply + "\n```\nHope this helps."}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")
	assert.Equal(t, TrendingBullish, got.Regime)
}

func TestClassifyExtractsObjectFromProse(t *testing.T) {
	oracle := &stubOracle{reply: "The regime assessment follows. " + goodReply + " End of reply."}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")
	assert.Equal(t, TrendingBullish, got.Regime)
}

func TestClassifyClampsOutOfRangeNumbers(t *testing.T) {
	reply := strings.Replace(goodReply, `"confidence": 0.8`, `"confidence": 1.7`, 1)
	reply = strings.Replace(reply, `"position_size_modifier": 0.9`, `"position_size_modifier": -0.2`, 1)
	oracle := &stubOracle{reply: reply}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, 0.0, got.PositionSizeModifier)
}

func TestClassifyFallbackOnOracleError(t *testing.T) {
	oracle := &stubOracle{err: errors.New("connection refused")}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "one", "two"), 20, "neutral")

	assert.Equal(t, HighUncertainty, got.Regime)
	assert.Equal(t, 0.3, got.Confidence)
	assert.Equal(t, StrategyCash, got.RecommendedStrategy)
	assert.Equal(t, 0.25, got.PositionSizeModifier)
	assert.Equal(t, RiskHigh, got.RiskLevel)
	require.Len(t, got.KeyRisks, 1)
	assert.Equal(t, 2, got.NewsCount)
}

func TestClassifyDefaultsAbsentRegimeAndStrategy(t *testing.T) {
	oracle := &stubOracle{reply: `{
		"confidence": 0.6,
		"reasoning": "mixed signals",
		"risk_level": "low"
	}`}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")

	assert.Equal(t, RangeBound, got.Regime)
	assert.Equal(t, StrategyMeanReversion, got.RecommendedStrategy)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.Equal(t, "mixed signals", got.Reasoning)
}

func TestClassifyFallbackOnUnknownRegime(t *testing.T) {
	oracle := &stubOracle{reply: strings.Replace(goodReply, "TRENDING_BULLISH", "SIDEWAYS_CHOP", 1)}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")
	assert.Equal(t, HighUncertainty, got.Regime)
	assert.Equal(t, StrategyCash, got.RecommendedStrategy)
}

func TestClassifyFallbackOnGarbage(t *testing.T) {
	oracle := &stubOracle{reply: "I cannot determine the market regime today."}
	a := NewAnalyzer(oracle)

	got := a.Classify(context.Background(), testFused(t, "h"), 20, "neutral")
	assert.Equal(t, HighUncertainty, got.Regime)
}

func TestClassifyPromptCarriesMarketData(t *testing.T) {
	oracle := &stubOracle{reply: goodReply}
	a := NewAnalyzer(oracle)

	a.Classify(context.Background(), testFused(t, "Some headline"), 31.2, "bearish")
	assert.Contains(t, oracle.seen, "31.20")
	assert.Contains(t, oracle.seen, "bearish")
	assert.Contains(t, oracle.seen, "Some headline")
}

func TestClassifySymbolNoNewsShortCircuits(t *testing.T) {
	oracle := &stubOracle{reply: goodReply}
	a := NewAnalyzer(oracle)

	got := a.ClassifySymbol(context.Background(), "TSLA", testFused(t, "unrelated"), RangeBound, Technicals{})

	assert.Equal(t, 0, oracle.calls, "no symbol news must not reach the oracle")
	assert.Equal(t, "hold", got.Recommendation)
	assert.Equal(t, 0.3, got.Confidence)
	assert.Equal(t, "none", got.EntryStrategy)
}

func TestClassifySymbolParsesAdvice(t *testing.T) {
	oracle := &stubOracle{reply: `{
		"recommendation": "buy",
		"confidence": 0.7,
		"reasoning": "strong catalyst",
		"entry_strategy": "momentum",
		"stop_loss_suggestion_pct": 0.05,
		"target_price_suggestion_pct": 0.15
	}`}
	a := NewAnalyzer(oracle)

	fused := testFused(t, "AAPL beats on all metrics")
	fused.Articles[0].Symbols = []string{"AAPL"}

	got := a.ClassifySymbol(context.Background(), "AAPL", fused, TrendingBullish, Technicals{})
	assert.Equal(t, "buy", got.Recommendation)
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, "momentum", got.EntryStrategy)
	assert.Equal(t, 0.05, got.StopLossPct)
}

func TestExtractJSONNestedAndEscaped(t *testing.T) {
	body, err := extractJSON(`note {"a": {"b": "with \" brace }"}, "c": 1} tail`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": "with \" brace }"}, "c": 1}`, body)

	_, err = extractJSON("no object here")
	assert.Error(t, err)

	_, err = extractJSON(`{"unbalanced": true`)
	assert.Error(t, err)
}
