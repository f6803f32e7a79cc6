// Package score computes the 0-100 rule score for an (article, category)
// pair and fuses it with the external classifier's verdict.
package score

import (
	"strings"
	"time"

	"github.com/civicbrief/civicbrief/internal/category"
	"github.com/civicbrief/civicbrief/internal/feed"
)

// EscalationFloor is the minimum rule score before an article is worth an
// external classification call.
const EscalationFloor = 40

// Layer caps. The capped layers sum to at most 100, and the total is
// capped again for safety.
const (
	capContext    = 25
	capLocale     = 20
	capSource     = 15
	capRecency    = 15
	capAlignment  = 15
	capSimilarity = 10
)

// Terms the locale-relevance layer matches against, first tier wins.
// Primary locale, then the adjacent region, then global institutions whose
// decisions still land locally.
var indiaTerms = []string{
	"india", "indian", "bharat", "delhi", "mumbai", "kolkata", "chennai",
	"bengaluru", "hyderabad", "lok sabha", "rajya sabha", "parliament of india",
	"supreme court of india", "rbi", "reserve bank", "niti aayog", "panchayat",
	"crore", "lakh", "rupee", "aadhaar",
}

var regionTerms = []string{
	"south asia", "pakistan", "bangladesh", "sri lanka", "nepal", "bhutan",
	"myanmar", "maldives", "himalaya", "bay of bengal", "indian ocean", "saarc",
}

var globalInstitutionTerms = []string{
	"united nations", "world health organization", "who ", "imf",
	"world bank", "wto", "unicef", "unesco", "g20", "brics", "cop summit",
}

// Breakdown holds the per-layer sub-scores plus the capped total.
type Breakdown struct {
	Context    int `json:"context"`
	Locale     int `json:"locale"`
	Source     int `json:"source"`
	Recency    int `json:"recency"`
	Alignment  int `json:"alignment"`
	Similarity int `json:"similarity"`
	Total      int `json:"total"`
}

// PassToAI reports whether the article cleared the escalation floor.
func (b Breakdown) PassToAI() bool {
	return b.Total >= EscalationFloor
}

// Scorer computes rule scores. The clock is injectable for tests.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// Score runs all six signal layers over the article and its matched
// category. Every layer is independent, capped, and never errors.
func (s *Scorer) Score(e feed.Entry, cat category.Category) Breakdown {
	text := strings.ToLower(e.Title + " " + e.Description)

	b := Breakdown{
		Context:    contextScore(text, cat),
		Locale:     localeScore(text),
		Source:     sourceScore(e.Source.Tier),
		Recency:    recencyScore(s.now().Sub(e.Published)),
		Alignment:  alignmentScore(text, cat),
		Similarity: similarityScore(text, cat.Vocabulary()),
	}
	b.Total = b.Context + b.Locale + b.Source + b.Recency + b.Alignment + b.Similarity
	if b.Total > 100 {
		b.Total = 100
	}
	return b
}

// contextScore: keyword matches x3 (cap 15) plus context-word matches x2
// (cap 10). The context bonus only counts once at least one keyword hit.
func contextScore(text string, cat category.Category) int {
	keywordHits := countMatches(text, cat.Keywords)
	kw := keywordHits * 3
	if kw > 15 {
		kw = 15
	}
	if keywordHits == 0 {
		return 0
	}
	ctx := countMatches(text, cat.ContextWords) * 2
	if ctx > 10 {
		ctx = 10
	}
	total := kw + ctx
	if total > capContext {
		total = capContext
	}
	return total
}

// localeScore: tiered flat bonus, first matching tier wins, no stacking.
func localeScore(text string) int {
	if containsAny(text, indiaTerms) {
		return capLocale
	}
	if containsAny(text, regionTerms) {
		return 15
	}
	if containsAny(text, globalInstitutionTerms) {
		return 10
	}
	return 0
}

// sourceScore maps the source's static credibility tier to a flat bonus.
// Unranked sources still get a floor of 3.
func sourceScore(tier int) int {
	switch tier {
	case 1:
		return capSource
	case 2:
		return 10
	case 3:
		return 5
	default:
		return 3
	}
}

// recencyScore is a step function of article age, monotonically
// non-increasing with age.
func recencyScore(age time.Duration) int {
	hours := age.Hours()
	switch {
	case hours < 3:
		return capRecency
	case hours < 12:
		return 12
	case hours < 24:
		return 8
	case hours < 72:
		return 4
	default:
		return 0
	}
}

// alignmentScore: category keyword matches x3 (cap 15) plus a flat +5 when
// any locale-specific category keyword matches; capped at 15 overall.
func alignmentScore(text string, cat category.Category) int {
	score := countMatches(text, cat.Keywords) * 3
	if score > capAlignment {
		score = capAlignment
	}
	if containsAny(text, cat.LocaleWords) {
		score += 5
	}
	if score > capAlignment {
		score = capAlignment
	}
	return score
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		n += strings.Count(text, kw)
	}
	return n
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
