package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/vorschlag/trading-bot/internal/news"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubFetcher pulls general and company news from the Finnhub API.
// Free tier allows 60 requests per minute.
type FinnhubFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter
}

func NewFinnhubFetcher(apiKey string) *FinnhubFetcher {
	return &FinnhubFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(finnhubBaseURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
		limiter: rate.NewLimiter(rate.Limit(60.0/60.0), 1),
	}
}

func (f *FinnhubFetcher) Name() string { return "finnhub" }

type finnhubItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // unix seconds
	Headline string `json:"headline"`
	Related  string `json:"related"` // comma-separated tickers
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (f *FinnhubFetcher) Fetch(ctx context.Context) ([]news.Article, error) {
	var items []finnhubItem
	if err := f.get(ctx, "/news", map[string]string{"category": "general"}, &items); err != nil {
		return nil, err
	}
	return f.toArticles(items, ""), nil
}

func (f *FinnhubFetcher) FetchSymbol(ctx context.Context, symbol string) ([]news.Article, error) {
	now := time.Now().UTC()
	var items []finnhubItem
	err := f.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   now.AddDate(0, 0, -7).Format("2006-01-02"),
		"to":     now.Format("2006-01-02"),
	}, &items)
	if err != nil {
		return nil, err
	}
	return f.toArticles(items, symbol), nil
}

func (f *FinnhubFetcher) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return NewRateLimitError(f.Name(), err.Error())
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", f.apiKey).
		SetResult(out).
		Get(path)
	if err != nil {
		return NewNetworkError(f.Name(), "request failed", errors.Wrap(err, path))
	}
	if resp.IsError() {
		return NewProviderFault(f.Name(), resp.Status(), nil)
	}
	return nil
}

func (f *FinnhubFetcher) toArticles(items []finnhubItem, symbol string) []news.Article {
	articles := make([]news.Article, 0, len(items))
	for _, it := range items {
		if it.Headline == "" {
			continue
		}
		a := news.NewArticle(it.Headline, it.Summary, f.Name(), it.URL, time.Unix(it.Datetime, 0))
		if it.Related != "" {
			a.Symbols = strings.Split(it.Related, ",")
		}
		if symbol != "" && !a.HasSymbol(symbol) {
			a.Symbols = append(a.Symbols, symbol)
		}
		category := it.Category
		if category == "" {
			category = "general"
		}
		a.Categories = []string{category}
		articles = append(articles, a)
	}
	return articles
}
