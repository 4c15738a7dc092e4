package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Trading struct {
	Capital              float64  `yaml:"capital"`
	Mode                 string   `yaml:"mode"` // paper | live
	CycleIntervalSeconds int      `yaml:"cycle_interval_seconds"`
	MinTradeCapital      float64  `yaml:"min_trade_capital"`
	Watchlist            []string `yaml:"watchlist"`
	Venue                string   `yaml:"venue"` // default exchange for new positions
}

type Risk struct {
	MaxPositionPct     float64 `yaml:"max_position_pct"`
	MaxRiskPerTradePct float64 `yaml:"max_risk_per_trade_pct"`
	MaxPortfolioRisk   float64 `yaml:"max_portfolio_risk_pct"`
	MaxDrawdownPct     float64 `yaml:"max_drawdown_pct"`
}

type News struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	FetchTimeoutMs  int `yaml:"fetch_timeout_ms"`
}

type Oracle struct {
	Provider  string `yaml:"provider"` // anthropic | openai
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	MaxTokens int    `yaml:"max_tokens"`
}

type TradingHours struct {
	Start    string `yaml:"start"` // "09:00"
	End      string `yaml:"end"`   // "17:30"
	Timezone string `yaml:"timezone"`
}

type Paper struct {
	OutboxPath     string `yaml:"outbox_path"`
	LatencyMsMin   int    `yaml:"latency_ms_min"`
	LatencyMsMax   int    `yaml:"latency_ms_max"`
	SlippageBpsMin int    `yaml:"slippage_bps_min"`
	SlippageBpsMax int    `yaml:"slippage_bps_max"`
}

type Root struct {
	Trading      Trading      `yaml:"trading"`
	Risk         Risk         `yaml:"risk"`
	News         News         `yaml:"news"`
	Oracle       Oracle       `yaml:"oracle"`
	TradingHours TradingHours `yaml:"trading_hours"`
	Paper        Paper        `yaml:"paper"`
}

// Secrets are read from the environment, never from the YAML file.
type Secrets struct {
	FinnhubKey      string
	AlphaVantageKey string
	NewsAPIKey      string
	OracleKey       string
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	if c.Trading.Capital == 0 {
		c.Trading.Capital = 50000
	}
	if c.Trading.Mode == "" {
		c.Trading.Mode = "paper"
	}
	if c.Trading.CycleIntervalSeconds == 0 {
		c.Trading.CycleIntervalSeconds = 300
	}
	if c.Trading.MinTradeCapital == 0 {
		c.Trading.MinTradeCapital = 500
	}
	if c.Trading.Venue == "" {
		c.Trading.Venue = "SMART"
	}

	if c.Risk.MaxPositionPct == 0 {
		c.Risk.MaxPositionPct = 0.05
	}
	if c.Risk.MaxRiskPerTradePct == 0 {
		c.Risk.MaxRiskPerTradePct = 0.01
	}
	if c.Risk.MaxPortfolioRisk == 0 {
		c.Risk.MaxPortfolioRisk = 0.10
	}
	if c.Risk.MaxDrawdownPct == 0 {
		c.Risk.MaxDrawdownPct = 0.15
	}

	if c.News.CacheTTLSeconds == 0 {
		c.News.CacheTTLSeconds = 300
	}
	if c.News.FetchTimeoutMs == 0 {
		c.News.FetchTimeoutMs = 10000
	}

	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "anthropic"
	}
	if c.Oracle.TimeoutMs == 0 {
		c.Oracle.TimeoutMs = 60000
	}
	if c.Oracle.MaxTokens == 0 {
		c.Oracle.MaxTokens = 2000
	}

	if c.TradingHours.Start == "" {
		c.TradingHours.Start = "09:00"
	}
	if c.TradingHours.End == "" {
		c.TradingHours.End = "17:30"
	}
	if c.TradingHours.Timezone == "" {
		c.TradingHours.Timezone = "Europe/Berlin"
	}

	if c.Paper.OutboxPath == "" {
		c.Paper.OutboxPath = "data/outbox.jsonl"
	}
	if c.Paper.LatencyMsMin == 0 {
		c.Paper.LatencyMsMin = 100
	}
	if c.Paper.LatencyMsMax == 0 {
		c.Paper.LatencyMsMax = 2000
	}
	if c.Paper.SlippageBpsMin == 0 {
		c.Paper.SlippageBpsMin = 1
	}
	if c.Paper.SlippageBpsMax == 0 {
		c.Paper.SlippageBpsMax = 5
	}

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Root) validate() error {
	if c.Trading.Mode != "paper" && c.Trading.Mode != "live" {
		return fmt.Errorf("trading.mode must be paper or live, got %q", c.Trading.Mode)
	}
	if _, err := time.Parse("15:04", c.TradingHours.Start); err != nil {
		return fmt.Errorf("trading_hours.start: %w", err)
	}
	if _, err := time.Parse("15:04", c.TradingHours.End); err != nil {
		return fmt.Errorf("trading_hours.end: %w", err)
	}
	if _, err := time.LoadLocation(c.TradingHours.Timezone); err != nil {
		return fmt.Errorf("trading_hours.timezone: %w", err)
	}
	return nil
}

// LoadSecrets pulls API keys from the environment. Missing keys disable the
// corresponding provider rather than failing startup.
func LoadSecrets() Secrets {
	return Secrets{
		FinnhubKey:      os.Getenv("FINNHUB_API_KEY"),
		AlphaVantageKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		NewsAPIKey:      os.Getenv("NEWSAPI_KEY"),
		OracleKey:       firstEnv("ANTHROPIC_API_KEY", "OPENAI_API_KEY"),
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
