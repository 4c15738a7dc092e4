package news

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vorschlag/trading-bot/internal/observ"
)

// Fetcher is the uniform contract every news provider implements. Fetch
// errors are per-provider and never abort a fusion pass.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Article, error)
	FetchSymbol(ctx context.Context, symbol string) ([]Article, error)
}

// cacheSlot is the single named cache entry for fused market news. Written
// only at the end of a fetch pass; readers observe either the prior article
// list or the new one, never a partial update.
type cacheSlot struct {
	mu        sync.RWMutex
	valid     bool
	fetchedAt time.Time
	articles  []Article
}

// get distinguishes "never fetched" from "fetched and empty": an empty pass
// is still cached for the TTL so a total provider outage is not re-fetched
// on every call.
func (c *cacheSlot) get(ttl time.Duration, now time.Time) ([]Article, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid || now.Sub(c.fetchedAt) >= ttl {
		return nil, time.Time{}, false
	}
	return c.articles, c.fetchedAt, true
}

func (c *cacheSlot) put(articles []Article, fetchedAt time.Time) {
	c.mu.Lock()
	c.valid = true
	c.articles = articles
	c.fetchedAt = fetchedAt
	c.mu.Unlock()
}

// Aggregator fuses articles from all registered fetchers into one snapshot.
type Aggregator struct {
	fetchers []Fetcher
	cache    cacheSlot
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithCacheTTL(ttl time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.ttl = ttl }
}

func WithFetchTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.timeout = d }
}

// withClock overrides the time source, for cache TTL tests.
func withClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(fetchers []Fetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetchers: fetchers,
		ttl:      5 * time.Minute,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchMarketNews runs every registered fetcher concurrently and fuses the
// union of all successful results. Individual fetcher failures contribute
// zero articles; if everything fails the snapshot is empty, never an error.
func (a *Aggregator) FetchMarketNews(ctx context.Context, useCache bool) *FusedNews {
	if useCache {
		if cached, at, ok := a.cache.get(a.ttl, a.now().UTC()); ok {
			observ.IncCounter("news_cache_hits_total", nil)
			return buildFused(cached, at)
		}
	}

	fused := a.fanOut(ctx, func(ctx context.Context, f Fetcher) ([]Article, error) {
		return f.Fetch(ctx)
	})

	fetchedAt := a.now().UTC()
	a.cache.put(fused, fetchedAt)
	return buildFused(fused, fetchedAt)
}

// FetchSymbolNews fetches company-scoped news. It bypasses the market cache
// entirely and applies the same dedup rule; results are not cached.
func (a *Aggregator) FetchSymbolNews(ctx context.Context, symbol string) *FusedNews {
	fused := a.fanOut(ctx, func(ctx context.Context, f Fetcher) ([]Article, error) {
		return f.FetchSymbol(ctx, symbol)
	})
	return buildFused(fused, a.now().UTC())
}

// fanOut runs one bounded task per fetcher, collects all results, and folds
// per-task failures into a log line instead of propagating them.
func (a *Aggregator) fanOut(ctx context.Context, call func(context.Context, Fetcher) ([]Article, error)) []Article {
	type result struct {
		name     string
		articles []Article
		err      error
	}

	results := make(chan result, len(a.fetchers))
	var wg sync.WaitGroup
	for _, f := range a.fetchers {
		wg.Add(1)
		go func(f Fetcher) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			articles, err := call(fctx, f)
			results <- result{name: f.Name(), articles: articles, err: err}
		}(f)
	}
	wg.Wait()
	close(results)

	var all []Article
	for r := range results {
		if r.err != nil {
			observ.IncCounter("news_fetch_errors_total", map[string]string{"provider": r.name})
			observ.Log("news_fetch_error", map[string]any{"provider": r.name, "error": r.err.Error()})
			continue
		}
		observ.Observe("news_articles_fetched", float64(len(r.articles)), map[string]string{"provider": r.name})
		all = append(all, r.articles...)
	}

	return deduplicate(all)
}

// deduplicate sorts newest-first, then keeps the first article per normalized
// headline key. Sorting first means the retained duplicate is always the most
// recently published instance.
func deduplicate(articles []Article) []Article {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	seen := map[string]bool{}
	unique := articles[:0]
	for _, a := range articles {
		key := DedupKey(a.Headline)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, a)
	}
	return unique
}
