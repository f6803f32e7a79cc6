// Package sources loads the static feed-source table.
package sources

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Source is one configured feed provider. Immutable after load.
type Source struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Language string   `yaml:"language"`
	Tier     int      `yaml:"tier"` // credibility tier 1..3, 0 = unranked
	Feeds    []string `yaml:"feeds"`
	Focus    []string `yaml:"focus"` // declared focus categories, optional
}

type sourcesConfig struct {
	Sources []Source `yaml:"sources"`
}

// Load reads the source table from a YAML file. Malformed entries are
// logged and skipped rather than failing the whole load.
func Load(path string) ([]Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg sourcesConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing sources config: %w", err)
	}

	valid := make([]Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s.Key == "" || s.Name == "" || len(s.Feeds) == 0 {
			slog.Warn("skipping malformed source entry", "key", s.Key, "name", s.Name)
			continue
		}
		if s.Language == "" {
			s.Language = "english"
		}
		if s.Tier < 0 || s.Tier > 3 {
			slog.Warn("source tier out of range, treating as unranked", "key", s.Key, "tier", s.Tier)
			s.Tier = 0
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid sources in %s", path)
	}
	return valid, nil
}
