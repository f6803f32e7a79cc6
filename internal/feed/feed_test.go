package feed

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civicbrief/civicbrief/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rssItem struct {
	title     string
	desc      string
	link      string
	published time.Time
}

func rssXML(items []rssItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0"><channel><title>test feed</title>`)
	for _, it := range items {
		fmt.Fprintf(&b, `<item><title>%s</title><description>%s</description><link>%s</link><pubDate>%s</pubDate></item>`,
			it.title, it.desc, it.link, it.published.Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func rssServer(t *testing.T, items []rssItem) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssXML(items))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSource(key string, feeds ...string) sources.Source {
	return sources.Source{Key: key, Name: key, Language: "en", Tier: 1, Feeds: feeds}
}

func testIngestor(opts Options) *Ingestor {
	if opts.MaxPerFeed == 0 {
		opts.MaxPerFeed = 15
	}
	if opts.Freshness == 0 {
		opts.Freshness = 72 * time.Hour
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 2 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 2
	}
	if opts.DescMaxRunes == 0 {
		opts.DescMaxRunes = 300
	}
	return NewIngestor(opts)
}

func TestIngestDiscardsStaleEntries(t *testing.T) {
	now := time.Now()
	srv := rssServer(t, []rssItem{
		{title: "fresh story", desc: "still relevant", link: "https://example.com/fresh", published: now.Add(-2 * time.Hour)},
		{title: "old story", desc: "from last week", link: "https://example.com/old", published: now.Add(-100 * time.Hour)},
	})

	in := testIngestor(Options{})
	entries, stats := in.Ingest(context.Background(), []sources.Source{testSource("paper", srv.URL)})

	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/fresh", entries[0].Link)
	assert.Equal(t, 1, stats.Stale)
	assert.Equal(t, 1, stats.Survived)
	assert.Equal(t, 2, stats.Seen)
}

func TestIngestDedupsIdenticalLinksAcrossSources(t *testing.T) {
	now := time.Now()
	shared := rssItem{title: "syndicated story", desc: "runs everywhere", link: "https://example.com/shared", published: now.Add(-time.Hour)}
	srvA := rssServer(t, []rssItem{shared})
	srvB := rssServer(t, []rssItem{shared})

	in := testIngestor(Options{})
	entries, stats := in.Ingest(context.Background(), []sources.Source{
		testSource("paper_a", srvA.URL),
		testSource("paper_b", srvB.URL),
	})

	require.Len(t, entries, 1)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Survived)
	// First source in configured order wins.
	assert.Equal(t, "paper_a", entries[0].Source.Key)
}

func TestIngestDiscardsIncompleteEntries(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	srv := rssServer(t, []rssItem{
		{title: "", desc: "no headline", link: "https://example.com/a", published: now},
		{title: "no body", desc: "", link: "https://example.com/b", published: now},
		{title: "complete", desc: "has everything", link: "https://example.com/c", published: now},
	})

	in := testIngestor(Options{})
	entries, stats := in.Ingest(context.Background(), []sources.Source{testSource("paper", srv.URL)})

	require.Len(t, entries, 1)
	assert.Equal(t, "complete", entries[0].Title)
	assert.Equal(t, 2, stats.Incomplete)
}

func TestIngestCleansDescriptions(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	long := strings.Repeat("x", 400)
	srv := rssServer(t, []rssItem{
		{title: "markup story", desc: "&lt;p&gt;New &lt;b&gt;scheme&lt;/b&gt;   announced&lt;/p&gt;", link: "https://example.com/markup", published: now},
		{title: "long story", desc: long, link: "https://example.com/long", published: now},
	})

	in := testIngestor(Options{DescMaxRunes: 300})
	entries, _ := in.Ingest(context.Background(), []sources.Source{testSource("paper", srv.URL)})

	require.Len(t, entries, 2)
	assert.Equal(t, "New scheme announced", entries[0].Description)
	assert.Equal(t, 300, len([]rune(entries[1].Description)))
}

func TestIngestRespectsMaxPerFeed(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	var items []rssItem
	for i := 0; i < 10; i++ {
		items = append(items, rssItem{
			title:     fmt.Sprintf("story %d", i),
			desc:      "body",
			link:      fmt.Sprintf("https://example.com/%d", i),
			published: now,
		})
	}
	srv := rssServer(t, items)

	in := testIngestor(Options{MaxPerFeed: 3})
	entries, stats := in.Ingest(context.Background(), []sources.Source{testSource("paper", srv.URL)})

	assert.Len(t, entries, 3)
	assert.Equal(t, 3, stats.Seen)
}

func TestIngestHandlesGzipEncodedFeeds(t *testing.T) {
	now := time.Now()
	body := rssXML([]rssItem{
		{title: "compressed story", desc: "served gzipped", link: "https://example.com/gz", published: now.Add(-time.Hour)},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, body)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, body)
		gz.Close()
	}))
	t.Cleanup(srv.Close)

	in := testIngestor(Options{})
	entries, stats := in.Ingest(context.Background(), []sources.Source{testSource("cdn_paper", srv.URL)})

	require.Len(t, entries, 1)
	assert.Equal(t, "compressed story", entries[0].Title)
	assert.Equal(t, 0, stats.FeedErrors)
}

func TestIngestSkipsFailingFeeds(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	healthy := rssServer(t, []rssItem{
		{title: "surviving story", desc: "body", link: "https://example.com/ok", published: now},
	})

	in := testIngestor(Options{})
	entries, stats := in.Ingest(context.Background(), []sources.Source{
		testSource("broken", broken.URL),
		testSource("healthy", healthy.URL),
	})

	require.Len(t, entries, 1)
	assert.Equal(t, 1, stats.FeedErrors)
	assert.Equal(t, 1, stats.FeedsOK)
}

func TestIngestTitleDedupCollapsesSyndicatedStories(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	srv := rssServer(t, []rssItem{
		{title: "Budget  Session Begins", desc: "body one", link: "https://example.com/news/1", published: now},
		{title: "budget session begins", desc: "body two", link: "https://example.com/amp/1", published: now},
	})

	in := testIngestor(Options{DedupByTitle: true})
	entries, stats := in.Ingest(context.Background(), []sources.Source{testSource("paper", srv.URL)})

	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/news/1", entries[0].Link)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestIngestIsIdempotentForUnchangedFeeds(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	srv := rssServer(t, []rssItem{
		{title: "story one", desc: "body", link: "https://example.com/1", published: now},
		{title: "story two", desc: "body", link: "https://example.com/2", published: now},
	})
	src := []sources.Source{testSource("paper", srv.URL)}

	in := testIngestor(Options{})
	first, _ := in.Ingest(context.Background(), src)
	second, _ := in.Ingest(context.Background(), src)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Link, second[i].Link)
	}
}

func TestTitleKey(t *testing.T) {
	a := titleKey("  Budget Session  Begins ", "https://www.example.com/news/1")
	b := titleKey("budget session begins", "http://example.com/other")
	assert.Equal(t, a, b)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", extractDomain("https://www.example.com/a/b"))
	assert.Equal(t, "example.com", extractDomain("http://example.com"))
	assert.Equal(t, "unknown", extractDomain(""))
}
