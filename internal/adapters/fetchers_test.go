package adapters

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vorschlag/trading-bot/internal/news"
)

func TestFinnhubFetchParsesItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "test-key" {
			t.Error("api key not passed as token param")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"category": "company", "datetime": 1767225600, "headline": "Apple unveils new chip", "related": "AAPL,TSM", "summary": "...", "url": "https://x/1"},
			{"category": "", "datetime": 1767225700, "headline": "Markets open higher", "related": "", "summary": "", "url": "https://x/2"},
			{"category": "general", "datetime": 1767225800, "headline": "", "related": "", "summary": "skipped", "url": ""}
		]`))
	}))
	defer server.Close()

	f := NewFinnhubFetcher("test-key")
	f.client.SetBaseURL(server.URL)

	articles, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles (empty headline dropped), got %d", len(articles))
	}

	a := articles[0]
	if a.Headline != "Apple unveils new chip" {
		t.Errorf("headline = %q", a.Headline)
	}
	if len(a.Symbols) != 2 || a.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL TSM]", a.Symbols)
	}
	if a.Categories[0] != "company" {
		t.Errorf("category = %v", a.Categories)
	}
	if a.PublishedAt != time.Unix(1767225600, 0).UTC() {
		t.Errorf("publishedAt = %v", a.PublishedAt)
	}

	if articles[1].Categories[0] != "general" {
		t.Errorf("empty category should default to general, got %v", articles[1].Categories)
	}
}

func TestFinnhubFetchSymbolTagsTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/company-news" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "MSFT" {
			t.Errorf("symbol param = %q", r.URL.Query().Get("symbol"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"category": "company", "datetime": 1767225600, "headline": "Azure revenue jumps", "related": "", "url": ""}]`))
	}))
	defer server.Close()

	f := NewFinnhubFetcher("k")
	f.client.SetBaseURL(server.URL)

	articles, err := f.FetchSymbol(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("FetchSymbol() error = %v", err)
	}
	if len(articles) != 1 || !articles[0].HasSymbol("MSFT") {
		t.Errorf("symbol news must be tagged with the requested ticker: %+v", articles)
	}
}

func TestFinnhubServerErrorIsProviderFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFinnhubFetcher("bad-key")
	f.client.SetBaseURL(server.URL)
	f.client.SetRetryCount(0)

	_, err := f.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error on 403")
	}
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
}

func TestAlphaVantageParsesSentiment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "NEWS_SENTIMENT" {
			t.Error("function param missing")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"feed": [
			{
				"title": "Tech rally extends",
				"url": "https://x/1",
				"time_published": "20260301T143000",
				"summary": "...",
				"overall_sentiment_score": "0.41",
				"ticker_sentiment": [{"ticker": "NVDA"}, {"ticker": "AMD"}],
				"topics": [{"topic": "technology"}]
			},
			{
				"title": "Earnings preview",
				"url": "https://x/2",
				"time_published": "not-a-date",
				"overall_sentiment_score": "garbage"
			}
		]}`))
	}))
	defer server.Close()

	f := NewAlphaVantageFetcher("k")
	f.client.SetBaseURL(server.URL)

	articles, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	a := articles[0]
	if a.SentimentScore == nil || *a.SentimentScore != 0.41 {
		t.Fatalf("sentiment score not parsed: %+v", a.SentimentScore)
	}
	if a.Sentiment != news.SentimentVeryBullish {
		t.Errorf("sentiment band = %v, want very_bullish", a.Sentiment)
	}
	if len(a.Symbols) != 2 || a.Symbols[0] != "NVDA" {
		t.Errorf("symbols = %v", a.Symbols)
	}
	want := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	if !a.PublishedAt.Equal(want) {
		t.Errorf("publishedAt = %v, want %v", a.PublishedAt, want)
	}

	// Unparseable score stays nil, unparseable time falls back to now.
	b := articles[1]
	if b.SentimentScore != nil {
		t.Error("garbage score should be dropped")
	}
	if time.Since(b.PublishedAt) > time.Minute {
		t.Errorf("fallback publish time should be near now, got %v", b.PublishedAt)
	}
}

func TestRSSParsesBothFormats(t *testing.T) {
	rssBody := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item><title>Stocks slip at the open</title><link>https://x/a</link><description>d</description><pubDate>Mon, 02 Mar 2026 09:30:00 -0500</pubDate></item>
  <item><title>Bond yields climb</title><link>https://x/b</link><description>d</description><pubDate>Mon, 02 Mar 2026 09:00:00 -0500</pubDate></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(rssBody))
	}))
	defer server.Close()

	f := NewRSSFetcher(map[string]string{"test_feed": server.URL})
	articles, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Provider != "rss" {
		t.Errorf("provider = %q", articles[0].Provider)
	}
	if articles[0].Categories[0] != "test_feed" {
		t.Errorf("feed name should land in categories, got %v", articles[0].Categories)
	}
}

func TestRSSAllFeedsFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewRSSFetcher(map[string]string{"only": server.URL})
	_, err := f.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error when every feed fails")
	}
}
