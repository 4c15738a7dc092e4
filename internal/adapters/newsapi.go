package adapters

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/vorschlag/trading-bot/internal/news"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPIFetcher pulls business headlines from NewsAPI.org. Headlines only,
// no sentiment, no ticker tagging.
type NewsAPIFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter
}

func NewNewsAPIFetcher(apiKey string) *NewsAPIFetcher {
	return &NewsAPIFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(newsAPIBaseURL).
			SetTimeout(10 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(5.0/60.0), 1),
	}
}

func (f *NewsAPIFetcher) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (f *NewsAPIFetcher) Fetch(ctx context.Context) ([]news.Article, error) {
	return f.query(ctx, "/top-headlines", map[string]string{
		"category": "business",
		"country":  "us",
	})
}

func (f *NewsAPIFetcher) FetchSymbol(ctx context.Context, symbol string) ([]news.Article, error) {
	articles, err := f.query(ctx, "/everything", map[string]string{
		"q":        symbol,
		"language": "en",
		"sortBy":   "publishedAt",
	})
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].Symbols = []string{symbol}
	}
	return articles, nil
}

func (f *NewsAPIFetcher) query(ctx context.Context, path string, params map[string]string) ([]news.Article, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, NewRateLimitError(f.Name(), err.Error())
	}

	var out newsAPIResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("apiKey", f.apiKey).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, NewNetworkError(f.Name(), "request failed", errors.Wrap(err, path))
	}
	if resp.IsError() {
		return nil, NewProviderFault(f.Name(), resp.Status(), nil)
	}
	if out.Status != "ok" {
		return nil, NewProviderFault(f.Name(), "status "+out.Status, nil)
	}

	articles := make([]news.Article, 0, len(out.Articles))
	for _, it := range out.Articles {
		if it.Title == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, it.PublishedAt)
		if err != nil {
			publishedAt = time.Now().UTC()
		}
		a := news.NewArticle(it.Title, it.Description, f.Name(), it.URL, publishedAt)
		a.Categories = []string{"general"}
		articles = append(articles, a)
	}
	return articles, nil
}
