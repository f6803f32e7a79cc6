// Package feed fetches configured syndication feeds and turns them into
// clean, deduplicated entries for the scoring pipeline.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicbrief/civicbrief/internal/sources"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const userAgent = "civicbrief/1.0 (+https://github.com/civicbrief/civicbrief)"

// Entry is one feed item after cleaning, before scoring. Transient: it
// lives for a single refresh cycle.
type Entry struct {
	Title       string
	Description string
	Link        string
	Published   time.Time
	Source      sources.Source
}

// Stats counts what happened to entries during one ingestion cycle, so
// skips stay observable instead of vanishing into logs.
type Stats struct {
	FeedsOK    int
	FeedErrors int
	Seen       int
	Stale      int
	Incomplete int
	Duplicates int
	Survived   int
}

// Options configures an Ingestor.
type Options struct {
	MaxPerFeed   int
	Freshness    time.Duration
	FetchTimeout time.Duration
	BatchSize    int // concurrent feed fetches
	DescMaxRunes int
	DedupByTitle bool // secondary dedup key: normalized title + domain
}

type Ingestor struct {
	client *http.Client
	opts   Options
	now    func() time.Time
}

func NewIngestor(opts Options) *Ingestor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	return &Ingestor{
		client: &http.Client{Timeout: opts.FetchTimeout},
		opts:   opts,
		now:    time.Now,
	}
}

// Ingest fetches every feed of every source, in batches of BatchSize, and
// returns the surviving entries deduplicated across all sources. Fetch and
// parse failures skip the feed for this cycle; they are never fatal and
// never retried within the cycle.
func (in *Ingestor) Ingest(ctx context.Context, srcs []sources.Source) ([]Entry, Stats) {
	type fetchJob struct {
		url    string
		source sources.Source
	}
	var jobs []fetchJob
	for _, s := range srcs {
		for _, u := range s.Feeds {
			jobs = append(jobs, fetchJob{url: u, source: s})
		}
	}

	results := make([][]Entry, len(jobs))
	errored := make([]bool, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.BatchSize)
	for i, job := range jobs {
		g.Go(func() error {
			entries, err := in.fetchFeed(gctx, job.url, job.source)
			if err != nil {
				slog.Warn("feed fetch failed, skipping for this cycle",
					"source", job.source.Name, "url", job.url, "error", err)
				errored[i] = true
				return nil
			}
			results[i] = entries
			return nil
		})
	}
	_ = g.Wait() // workers only report via results/errored

	var stats Stats
	seenLinks := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	var out []Entry

	// Flatten in job order so dedup survivors are deterministic for
	// identical inputs.
	for i := range jobs {
		if errored[i] {
			stats.FeedErrors++
			continue
		}
		stats.FeedsOK++
		for _, e := range results[i] {
			stats.Seen++
			switch in.filter(e, in.now()) {
			case skipStale:
				stats.Stale++
				continue
			case skipIncomplete:
				stats.Incomplete++
				continue
			}
			if _, dup := seenLinks[e.Link]; dup {
				stats.Duplicates++
				continue
			}
			seenLinks[e.Link] = struct{}{}
			if in.opts.DedupByTitle {
				key := titleKey(e.Title, e.Link)
				if _, dup := seenTitles[key]; dup {
					stats.Duplicates++
					continue
				}
				seenTitles[key] = struct{}{}
			}
			stats.Survived++
			out = append(out, e)
		}
	}

	slog.Info("ingestion cycle complete",
		"feeds_ok", stats.FeedsOK, "feed_errors", stats.FeedErrors,
		"seen", stats.Seen, "stale", stats.Stale, "incomplete", stats.Incomplete,
		"duplicates", stats.Duplicates, "survived", stats.Survived)
	return out, stats
}

// fetchFeed downloads and parses one feed URL, returning at most MaxPerFeed
// raw entries. The entries come back uncleaned; filtering happens in the
// sequential pass so the counts stay deterministic.
func (in *Ingestor) fetchFeed(ctx context.Context, url string, src sources.Source) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// Accept-Encoding stays untouched: the transport negotiates gzip and
	// decompresses transparently only when it set the header itself.
	req.Header.Set("User-Agent", userAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	now := in.now()
	items := parsed.Items
	if len(items) > in.opts.MaxPerFeed {
		items = items[:in.opts.MaxPerFeed]
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}

		entries = append(entries, Entry{
			Title:       cleanTitle(item.Title),
			Description: truncateRunes(stripHTML(desc), in.opts.DescMaxRunes),
			Link:        item.Link,
			Published:   pub,
			Source:      src,
		})
	}
	return entries, nil
}

type skipReason int

const (
	skipNone skipReason = iota
	skipStale
	skipIncomplete
)

func (in *Ingestor) filter(e Entry, now time.Time) skipReason {
	if now.Sub(e.Published) > in.opts.Freshness {
		return skipStale
	}
	if e.Title == "" || e.Description == "" || e.Link == "" {
		return skipIncomplete
	}
	return skipNone
}
