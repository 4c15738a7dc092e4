package news

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FusedNews is one immutable snapshot produced by a fusion pass. It is
// superseded by the next pass, never mutated.
type FusedNews struct {
	Articles         []Article `json:"articles"` // newest first
	FetchedAt        time.Time `json:"fetched_at"`
	OverallSentiment float64   `json:"overall_sentiment"`
	TrendingSymbols  []string  `json:"trending_symbols"` // top 10 by mention count
	KeyThemes        []string  `json:"key_themes"`       // top 5 categories
}

// ForSymbol filters articles mentioning the ticker.
func (f *FusedNews) ForSymbol(symbol string) []Article {
	var out []Article
	for _, a := range f.Articles {
		if a.HasSymbol(symbol) {
			out = append(out, a)
		}
	}
	return out
}

// Recent filters articles published inside the trailing window.
func (f *FusedNews) Recent(window time.Duration) []Article {
	cutoff := time.Now().UTC().Add(-window)
	var out []Article
	for _, a := range f.Articles {
		if a.PublishedAt.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// buildFused computes the aggregate statistics over an already-deduplicated,
// newest-first article list.
func buildFused(articles []Article, fetchedAt time.Time) *FusedNews {
	var sum float64
	var scored int
	for _, a := range articles {
		if a.SentimentScore != nil {
			sum += *a.SentimentScore
			scored++
		}
	}
	overall := 0.0
	if scored > 0 {
		overall = sum / float64(scored)
	}

	return &FusedNews{
		Articles:         articles,
		FetchedAt:        fetchedAt,
		OverallSentiment: overall,
		TrendingSymbols:  topByFrequency(articles, 10, func(a Article) []string { return a.Symbols }),
		KeyThemes:        topByFrequency(articles, 5, func(a Article) []string { return a.Categories }),
	}
}

// topByFrequency ranks values by mention count, ties broken by first
// encounter order across the article list.
func topByFrequency(articles []Article, limit int, extract func(Article) []string) []string {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	order := 0
	for _, a := range articles {
		for _, v := range extract(a) {
			if v == "" {
				continue
			}
			if _, ok := counts[v]; !ok {
				firstSeen[v] = order
				order++
			}
			counts[v]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return firstSeen[keys[i]] < firstSeen[keys[j]]
	})

	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// FormatDigest renders a bounded plain-text summary for the classification
// oracle: aggregate stats plus up to maxArticles recent headlines, each
// annotated with its sentiment score and up to two symbols.
func (f *FusedNews) FormatDigest(window time.Duration, maxArticles int) string {
	recent := f.Recent(window)
	if len(recent) > maxArticles {
		recent = recent[:maxArticles]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Articles: %d\n", len(recent))
	fmt.Fprintf(&b, "Overall sentiment score: %+.2f\n", f.OverallSentiment)
	fmt.Fprintf(&b, "Trending symbols: %s\n", strings.Join(f.TrendingSymbols, ", "))
	fmt.Fprintf(&b, "Key themes: %s\n", strings.Join(f.KeyThemes, ", "))
	b.WriteString("\n--- Headlines ---\n")

	for _, a := range recent {
		line := "- " + a.Headline
		if a.SentimentScore != nil {
			line += fmt.Sprintf(" [%+.2f]", *a.SentimentScore)
		}
		if len(a.Symbols) > 0 {
			syms := a.Symbols
			if len(syms) > 2 {
				syms = syms[:2]
			}
			line += fmt.Sprintf(" (%s)", strings.Join(syms, ", "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
