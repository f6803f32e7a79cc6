// Package category loads the topical category tables used for relevance
// classification and rule scoring.
package category

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one topical bucket. The set of categories is fixed per
// deployment; keyword sets and weights are configuration, not code.
type Category struct {
	Key          string   `yaml:"key"`
	NameEN       string   `yaml:"name_en"`
	NameHI       string   `yaml:"name_hi"`
	Keywords     []string `yaml:"keywords"`
	ContextWords []string `yaml:"context_words"`
	LocaleWords  []string `yaml:"locale_words"` // locale-specific boost terms
	Weight       float64  `yaml:"weight"`
	Icon         string   `yaml:"icon"`
}

type categoriesConfig struct {
	Categories []Category `yaml:"categories"`
}

// Load reads category definitions from a YAML file, validating each entry.
// Malformed entries are logged and skipped so that one bad record cannot
// silently break scoring at runtime.
func Load(path string) ([]Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg categoriesConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing categories config: %w", err)
	}

	valid := make([]Category, 0, len(cfg.Categories))
	seen := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if c.Key == "" || c.NameEN == "" || len(c.Keywords) == 0 {
			slog.Warn("skipping malformed category entry", "key", c.Key, "name", c.NameEN)
			continue
		}
		if seen[c.Key] {
			slog.Warn("skipping duplicate category key", "key", c.Key)
			continue
		}
		seen[c.Key] = true
		if c.Weight <= 0 {
			c.Weight = 1.0
		}
		c.Keywords = lowercaseAll(c.Keywords)
		c.ContextWords = lowercaseAll(c.ContextWords)
		c.LocaleWords = lowercaseAll(c.LocaleWords)
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid categories in %s", path)
	}
	return valid, nil
}

// Vocabulary returns the category's keyword and context vocabulary as one
// space-joined string, used to build its term-frequency vector.
func (c Category) Vocabulary() string {
	parts := make([]string, 0, len(c.Keywords)+len(c.ContextWords))
	parts = append(parts, c.Keywords...)
	parts = append(parts, c.ContextWords...)
	return strings.Join(parts, " ")
}

func lowercaseAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
