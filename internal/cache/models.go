package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/civicbrief/civicbrief/internal/score"
)

// Item is one scored, publishable article. Immutable after creation; its
// lifetime is one cache generation.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Language    string `json:"language"`

	CategoryKey string `json:"categoryKey"`
	Category    string `json:"category"`
	CategoryHI  string `json:"categoryHi"`

	PublishedAt    time.Time `json:"publishedAt"`
	PublishedAtIST string    `json:"publishedAtIST"`
	TimeAgo        string    `json:"timeAgo"`

	Breakdown  score.Breakdown `json:"breakdown"`
	AIScore    *int            `json:"aiScore,omitempty"`
	FinalScore int             `json:"score"`
	Reasoning  string          `json:"reasoning,omitempty"`
}

// Snapshot is the ordered, capped result set currently served. Replaced
// atomically, never mutated in place; readers always get a copy.
type Snapshot struct {
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generatedAt"`
	Refreshing  bool      `json:"refreshing"`
}

// ItemID is the stable identifier for an article: a content hash of its
// canonical URL.
func ItemID(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])[:16]
}
