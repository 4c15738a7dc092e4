package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vorschlag/trading-bot/internal/adapters"
	"github.com/vorschlag/trading-bot/internal/config"
	"github.com/vorschlag/trading-bot/internal/engine"
	"github.com/vorschlag/trading-bot/internal/news"
	"github.com/vorschlag/trading-bot/internal/observ"
	"github.com/vorschlag/trading-bot/internal/positions"
	"github.com/vorschlag/trading-bot/internal/regime"
	"github.com/vorschlag/trading-bot/internal/risk"
)

const outboxDedupeWindow = 5 * time.Minute

func main() {
	var (
		cfgPath     string
		oneShot     bool
		metricsAddr string
	)
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.BoolVar(&oneShot, "oneshot", false, "run a single cycle and exit")
	flag.StringVar(&metricsAddr, "metrics-addr", ":8090", "metrics listen address")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		observ.Log("config_error", map[string]any{"path": cfgPath, "error": err.Error()})
		os.Exit(1)
	}
	secrets := config.LoadSecrets()

	observ.Log("startup", map[string]any{
		"mode":      cfg.Trading.Mode,
		"capital":   cfg.Trading.Capital,
		"watchlist": cfg.Trading.Watchlist,
		"oneshot":   oneShot,
	})

	var fetchers []news.Fetcher
	if secrets.FinnhubKey != "" {
		fetchers = append(fetchers, adapters.NewFinnhubFetcher(secrets.FinnhubKey))
	}
	if secrets.AlphaVantageKey != "" {
		fetchers = append(fetchers, adapters.NewAlphaVantageFetcher(secrets.AlphaVantageKey))
	}
	if secrets.NewsAPIKey != "" {
		fetchers = append(fetchers, adapters.NewNewsAPIFetcher(secrets.NewsAPIKey))
	}
	fetchers = append(fetchers, adapters.NewRSSFetcher(adapters.DefaultFeeds))
	observ.Log("news_init", map[string]any{"fetchers": len(fetchers)})

	aggregator := news.NewAggregator(fetchers,
		news.WithCacheTTL(time.Duration(cfg.News.CacheTTLSeconds)*time.Second),
		news.WithFetchTimeout(time.Duration(cfg.News.FetchTimeoutMs)*time.Millisecond),
	)

	oracle := regime.NewHTTPOracle(
		cfg.Oracle.BaseURL,
		secrets.OracleKey,
		cfg.Oracle.Model,
		cfg.Oracle.MaxTokens,
		time.Duration(cfg.Oracle.TimeoutMs)*time.Millisecond,
	)
	analyzer := regime.NewAnalyzer(oracle)

	outbox, err := adapters.NewOutbox(cfg.Paper.OutboxPath, outboxDedupeWindow)
	if err != nil {
		observ.Log("outbox_error", map[string]any{"path": cfg.Paper.OutboxPath, "error": err.Error()})
		os.Exit(1)
	}
	broker := adapters.NewPaperBroker(
		cfg.Trading.Capital,
		outbox,
		cfg.Paper.LatencyMsMin, cfg.Paper.LatencyMsMax,
		cfg.Paper.SlippageBpsMin, cfg.Paper.SlippageBpsMax,
	)
	defer broker.Close()

	sizer := risk.NewManager(
		cfg.Trading.Capital,
		cfg.Risk.MaxPositionPct,
		cfg.Risk.MaxRiskPerTradePct,
		cfg.Risk.MaxPortfolioRisk,
	)

	controller := positions.NewController(broker, sizer, cfg.Trading.MinTradeCapital, cfg.Trading.Venue, cfg.Trading.Mode == "paper")

	bot, err := engine.NewBot(cfg, aggregator, analyzer, controller, broker, sizer)
	if err != nil {
		observ.Log("engine_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/healthz", observ.Health())
	observ.Log("metrics_listen", map[string]any{"addr": metricsAddr})
	go func() { _ = http.ListenAndServe(metricsAddr, mux) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if oneShot {
		if err := bot.Cycle(ctx); err != nil {
			observ.Log("cycle_error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		return
	}

	if err := bot.Run(ctx); err != nil {
		observ.Log("run_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
