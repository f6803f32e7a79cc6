// Package pipeline runs one full scoring cycle: ingest, classify, rule
// score, escalate, fuse, rank, truncate.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/civicbrief/civicbrief/internal/cache"
	"github.com/civicbrief/civicbrief/internal/category"
	"github.com/civicbrief/civicbrief/internal/classify"
	"github.com/civicbrief/civicbrief/internal/feed"
	"github.com/civicbrief/civicbrief/internal/metrics"
	"github.com/civicbrief/civicbrief/internal/score"
	"github.com/civicbrief/civicbrief/internal/sources"
)

// IST is the display timezone for served timestamps.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Escalator is the external classification adapter. Implementations never
// return an error; failures degrade to a deterministic fallback verdict.
type Escalator interface {
	Enabled() bool
	Escalate(ctx context.Context, title, description string, cat category.Category, ruleScore int) score.External
}

// Adjuster is the optional collective-feedback hook. A pass-through
// implementation is valid.
type Adjuster interface {
	AdjustScore(base int, url, category string) int
}

type Pipeline struct {
	sources    []sources.Source
	classifier *classify.Classifier
	scorer     *score.Scorer
	ingestor   *feed.Ingestor
	escalator  Escalator
	adjuster   Adjuster
	maxItems   int
	now        func() time.Time
}

func New(srcs []sources.Source, classifier *classify.Classifier, scorer *score.Scorer,
	ingestor *feed.Ingestor, escalator Escalator, adjuster Adjuster, maxItems int) *Pipeline {
	return &Pipeline{
		sources:    srcs,
		classifier: classifier,
		scorer:     scorer,
		ingestor:   ingestor,
		escalator:  escalator,
		adjuster:   adjuster,
		maxItems:   maxItems,
		now:        time.Now,
	}
}

// Run produces one complete cache generation. It satisfies cache.RefreshFunc.
func (p *Pipeline) Run(ctx context.Context) ([]cache.Item, error) {
	started := p.now()

	entries, stats := p.ingestor.Ingest(ctx, p.sources)
	metrics.Global.AddEntriesSeen(stats.Seen)
	metrics.Global.AddEntriesSurvived(stats.Survived)
	metrics.Global.AddDuplicatesFiltered(stats.Duplicates)
	if stats.FeedsOK == 0 && stats.FeedErrors > 0 {
		metrics.Global.IncrementRefreshFailures()
		metrics.Global.SetError("every configured feed failed")
		return nil, fmt.Errorf("every configured feed failed (%d errors)", stats.FeedErrors)
	}

	irrelevant, belowThreshold := 0, 0
	items := make([]cache.Item, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res := p.classifier.Classify(e.Title, e.Description)
		if !res.Relevant {
			irrelevant++
			continue
		}

		breakdown := p.scorer.Score(e, res.Category)

		var ext *score.External
		escalated := false
		if breakdown.PassToAI() && p.escalator != nil {
			verdict := p.escalator.Escalate(ctx, e.Title, e.Description, res.Category, breakdown.Total)
			ext = &verdict
			escalated = true
			metrics.Global.IncrementEscalations()
			if verdict.Fallback {
				metrics.Global.IncrementEscalationFallbacks()
			}
		}

		final, show := score.Fuse(breakdown.Total, ext)
		if !show {
			belowThreshold++
			continue
		}

		// Collective feedback may nudge the score, but an adjusted item
		// still has to clear its regime's publish threshold.
		if p.adjuster != nil {
			final = p.adjuster.AdjustScore(final, e.Link, res.Category.Key)
			if final < score.PublishThreshold(escalated) {
				belowThreshold++
				continue
			}
		}

		items = append(items, p.buildItem(e, res.Category, breakdown, ext, final))
	}

	// Descending by final score, ties broken by recency. Stable over the
	// deterministic ingestion order, so identical inputs rank identically.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FinalScore != items[j].FinalScore {
			return items[i].FinalScore > items[j].FinalScore
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}

	metrics.Global.AddItemsPublished(len(items))
	metrics.Global.RecordRefreshDuration(p.now().Sub(started))
	metrics.Global.SetLastRun()

	slog.Info("pipeline cycle complete",
		"survived", len(entries), "irrelevant", irrelevant,
		"below_threshold", belowThreshold, "published", len(items),
		"took", p.now().Sub(started))
	return items, nil
}

func (p *Pipeline) buildItem(e feed.Entry, cat category.Category, breakdown score.Breakdown, ext *score.External, final int) cache.Item {
	item := cache.Item{
		ID:          cache.ItemID(e.Link),
		Title:       e.Title,
		Description: e.Description,
		URL:         e.Link,
		Source:      e.Source.Name,
		Language:    e.Source.Language,

		CategoryKey: cat.Key,
		Category:    cat.NameEN,
		CategoryHI:  cat.NameHI,

		PublishedAt:    e.Published,
		PublishedAtIST: e.Published.In(IST).Format("02 Jan, 03:04 PM"),
		TimeAgo:        timeAgo(p.now().Sub(e.Published)),

		Breakdown:  breakdown,
		FinalScore: final,
	}
	if ext != nil {
		ai := ext.Relevance
		item.AIScore = &ai
		item.Reasoning = ext.Reasoning
	}
	return item
}

func timeAgo(age time.Duration) string {
	hours := int(age.Hours())
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	default:
		return fmt.Sprintf("%dd ago", hours/24)
	}
}
