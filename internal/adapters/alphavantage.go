package adapters

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/vorschlag/trading-bot/internal/news"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantageFetcher pulls the NEWS_SENTIMENT feed, the only provider here
// that ships a numeric sentiment score per article. Free tier is 25 requests
// per day, so the limiter is deliberately tight.
type AlphaVantageFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter
	topics  []string
}

func NewAlphaVantageFetcher(apiKey string) *AlphaVantageFetcher {
	return &AlphaVantageFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(alphaVantageBaseURL).
			SetTimeout(10 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(1.0/60.0), 1),
		topics:  []string{"financial_markets", "economy_macro", "technology"},
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alpha_vantage" }

type avFeed struct {
	Feed []avItem `json:"feed"`
}

type avItem struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	TimePublished   string `json:"time_published"` // 20231215T143000
	Summary         string `json:"summary"`
	SentimentScore  string `json:"overall_sentiment_score"`
	TickerSentiment []struct {
		Ticker string `json:"ticker"`
	} `json:"ticker_sentiment"`
	Topics []struct {
		Topic string `json:"topic"`
	} `json:"topics"`
}

func (f *AlphaVantageFetcher) Fetch(ctx context.Context) ([]news.Article, error) {
	return f.query(ctx, map[string]string{"topics": strings.Join(f.topics, ",")})
}

func (f *AlphaVantageFetcher) FetchSymbol(ctx context.Context, symbol string) ([]news.Article, error) {
	return f.query(ctx, map[string]string{"tickers": symbol})
}

func (f *AlphaVantageFetcher) query(ctx context.Context, params map[string]string) ([]news.Article, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, NewRateLimitError(f.Name(), err.Error())
	}

	var out avFeed
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParams(map[string]string{
			"function": "NEWS_SENTIMENT",
			"apikey":   f.apiKey,
			"limit":    "50",
		}).
		SetResult(&out).
		Get("/query")
	if err != nil {
		return nil, NewNetworkError(f.Name(), "request failed", errors.Wrap(err, "news_sentiment"))
	}
	if resp.IsError() {
		return nil, NewProviderFault(f.Name(), resp.Status(), nil)
	}

	articles := make([]news.Article, 0, len(out.Feed))
	for _, it := range out.Feed {
		if it.Title == "" {
			continue
		}
		publishedAt, err := time.Parse("20060102T150405", it.TimePublished)
		if err != nil {
			publishedAt = time.Now().UTC()
		}
		a := news.NewArticle(it.Title, it.Summary, f.Name(), it.URL, publishedAt)
		if score, err := strconv.ParseFloat(it.SentimentScore, 64); err == nil {
			a = a.WithScore(score)
		}
		for _, ts := range it.TickerSentiment {
			if ts.Ticker != "" {
				a.Symbols = append(a.Symbols, ts.Ticker)
			}
		}
		for _, tp := range it.Topics {
			if tp.Topic != "" {
				a.Categories = append(a.Categories, tp.Topic)
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}
