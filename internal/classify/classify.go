// Package classify maps an article to its best-matching category.
package classify

import (
	"strings"

	"github.com/civicbrief/civicbrief/internal/category"
)

// MinConfidence is the weighted match count an article needs against its
// best category to count as relevant at all.
const MinConfidence = 1.0

// Result is the outcome of a relevance check.
type Result struct {
	Relevant   bool
	Category   category.Category
	Confidence float64 // winning weighted keyword count
}

// Classifier scores articles against a fixed category set using the
// keyword-count policy: weighted keyword occurrence counts, best category
// wins. Categories are evaluated in configured order and a later category
// must strictly beat the current best, so ties keep the first one listed.
type Classifier struct {
	categories []category.Category
}

func New(categories []category.Category) *Classifier {
	return &Classifier{categories: categories}
}

// Classify checks title+description against every category's keyword list.
// Matches are substring occurrences (not tokenized), weighted by the
// category's importance weight.
func (c *Classifier) Classify(title, description string) Result {
	text := strings.ToLower(title + " " + description)

	var best category.Category
	bestScore := 0.0
	found := false

	for _, cat := range c.categories {
		matches := 0
		for _, kw := range cat.Keywords {
			if kw == "" {
				continue
			}
			matches += strings.Count(text, kw)
		}
		weighted := float64(matches) * cat.Weight
		if weighted > bestScore {
			best = cat
			bestScore = weighted
			found = true
		}
	}

	if !found || bestScore < MinConfidence {
		return Result{}
	}
	return Result{Relevant: true, Category: best, Confidence: bestScore}
}
