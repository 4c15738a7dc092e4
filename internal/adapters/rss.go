package adapters

import (
	"context"
	"encoding/xml"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vorschlag/trading-bot/internal/news"
)

// DefaultFeeds are the finance feeds polled when no custom map is supplied.
// RSS needs no API key, so this fetcher is always registered as a fallback.
var DefaultFeeds = map[string]string{
	"cnbc":              "https://www.cnbc.com/id/100003114/device/rss/rss.html",
	"marketwatch":       "http://feeds.marketwatch.com/marketwatch/topstories/",
	"yahoo_finance":     "https://finance.yahoo.com/news/rssindex",
	"seeking_alpha":     "https://seekingalpha.com/market_currents.xml",
	"bloomberg_markets": "https://feeds.bloomberg.com/markets/news.rss",
}

const maxItemsPerFeed = 20

// RSSFetcher reads a fixed set of finance RSS/Atom feeds.
type RSSFetcher struct {
	feeds  map[string]string
	client *resty.Client
}

func NewRSSFetcher(feeds map[string]string) *RSSFetcher {
	if feeds == nil {
		feeds = DefaultFeeds
	}
	return &RSSFetcher{
		feeds:  feeds,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

func (f *RSSFetcher) Name() string { return "rss" }

// Fetch pulls all feeds in parallel. A failing feed contributes nothing;
// Fetch only errors when every feed fails.
func (f *RSSFetcher) Fetch(ctx context.Context) ([]news.Article, error) {
	type feedResult struct {
		articles []news.Article
		err      error
	}

	results := make(chan feedResult, len(f.feeds))
	var wg sync.WaitGroup
	for name, url := range f.feeds {
		wg.Add(1)
		go func(name, url string) {
			defer wg.Done()
			articles, err := f.fetchFeed(ctx, name, url)
			results <- feedResult{articles: articles, err: err}
		}(name, url)
	}
	wg.Wait()
	close(results)

	var all []news.Article
	var lastErr error
	for r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		all = append(all, r.articles...)
	}
	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

// FetchSymbol returns nothing: the feeds carry no ticker tagging, and
// symbol-scoped passes rely on the API-backed providers.
func (f *RSSFetcher) FetchSymbol(ctx context.Context, symbol string) ([]news.Article, error) {
	return nil, nil
}

type rssDocument struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	Entries []struct {
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
		Updated string `xml:"updated"`
		Link    struct {
			Href string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (f *RSSFetcher) fetchFeed(ctx context.Context, name, url string) ([]news.Article, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, NewNetworkError(f.Name(), name, err)
	}
	if resp.IsError() {
		return nil, NewProviderFault(f.Name(), name+": "+resp.Status(), nil)
	}

	body := resp.Body()

	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := rss.Channel.Items
		if len(items) > maxItemsPerFeed {
			items = items[:maxItemsPerFeed]
		}
		articles := make([]news.Article, 0, len(items))
		for _, it := range items {
			if it.Title == "" {
				continue
			}
			a := news.NewArticle(it.Title, truncate(it.Description, 500), f.Name(), it.Link, parseFeedTime(it.PubDate))
			a.Categories = []string{name}
			articles = append(articles, a)
		}
		return articles, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		entries := atom.Entries
		if len(entries) > maxItemsPerFeed {
			entries = entries[:maxItemsPerFeed]
		}
		articles := make([]news.Article, 0, len(entries))
		for _, e := range entries {
			if e.Title == "" {
				continue
			}
			a := news.NewArticle(e.Title, truncate(e.Summary, 500), f.Name(), e.Link.Href, parseFeedTime(e.Updated))
			a.Categories = []string{name}
			articles = append(articles, a)
		}
		return articles, nil
	}

	return nil, NewParseError(f.Name(), name+": unrecognized feed format", nil)
}

// parseFeedTime tries the timestamp layouts seen in the wild across the
// default feeds, falling back to now so a bad date never drops an item.
func parseFeedTime(s string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
