package news

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Sentiment is the banded label derived from a provider's numeric score.
type Sentiment string

const (
	SentimentVeryBullish Sentiment = "very_bullish"
	SentimentBullish     Sentiment = "bullish"
	SentimentNeutral     Sentiment = "neutral"
	SentimentBearish     Sentiment = "bearish"
	SentimentVeryBearish Sentiment = "very_bearish"
)

// BandScore maps a numeric sentiment score in [-1,1] to its band.
func BandScore(score float64) Sentiment {
	switch {
	case score >= 0.35:
		return SentimentVeryBullish
	case score >= 0.15:
		return SentimentBullish
	case score <= -0.35:
		return SentimentVeryBearish
	case score <= -0.15:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Article is one normalized news item. Immutable once created.
type Article struct {
	ID             string    `json:"id"`
	Headline       string    `json:"headline"`
	Summary        string    `json:"summary"`
	Provider       string    `json:"provider"`
	URL            string    `json:"url"`
	PublishedAt    time.Time `json:"published_at"` // always UTC
	Symbols        []string  `json:"symbols"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"` // [-1,1] when the provider supplies one
	Sentiment      Sentiment `json:"sentiment,omitempty"`
	Categories     []string  `json:"categories"`
}

// Fingerprint derives the article ID from the headline and publish time only.
// Providers fetching the same story produce colliding IDs when the headline
// text matches; near-identical headlines collide via the dedup key instead.
func Fingerprint(headline string, publishedAt time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s%d", headline, publishedAt.UTC().Unix())))
	return hex.EncodeToString(sum[:])
}

// dedupPrefixLen bounds the normalized-headline comparison. Kept at the
// original aggregator's 50 characters; this both under-merges and over-merges
// in edge cases and is a documented approximation, not exact story matching.
const dedupPrefixLen = 50

// DedupKey returns the normalized headline prefix used for duplicate detection.
func DedupKey(headline string) string {
	k := strings.ToLower(strings.TrimSpace(headline))
	if r := []rune(k); len(r) > dedupPrefixLen {
		return string(r[:dedupPrefixLen])
	}
	return k
}

// NewArticle builds an Article with a computed fingerprint and UTC timestamp.
func NewArticle(headline, summary, provider, url string, publishedAt time.Time) Article {
	publishedAt = publishedAt.UTC()
	return Article{
		ID:          Fingerprint(headline, publishedAt),
		Headline:    headline,
		Summary:     summary,
		Provider:    provider,
		URL:         url,
		PublishedAt: publishedAt,
	}
}

// WithScore attaches a numeric sentiment score and its band.
func (a Article) WithScore(score float64) Article {
	a.SentimentScore = &score
	a.Sentiment = BandScore(score)
	return a
}

// HasSymbol reports whether the article mentions the ticker (case-insensitive).
func (a Article) HasSymbol(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, s := range a.Symbols {
		if strings.ToUpper(s) == symbol {
			return true
		}
	}
	return false
}
