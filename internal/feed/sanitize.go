package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripHTML extracts the plain text of a feed description, which is HTML
// more often than not. Falls back to the raw string if parsing fails.
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	return collapseWhitespace(doc.Text())
}

func cleanTitle(s string) string {
	return collapseWhitespace(s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes, keeping valid UTF-8.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// titleKey builds the secondary dedup key: normalized title plus source
// domain, so the same story syndicated under two URLs still collapses.
func titleKey(title, link string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return normalized + "|" + extractDomain(link)
}

func extractDomain(url string) string {
	if url == "" {
		return "unknown"
	}
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "https://")
	parts := strings.Split(url, "/")
	if len(parts) == 0 || parts[0] == "" {
		return "unknown"
	}
	return strings.ToLower(strings.TrimPrefix(parts[0], "www."))
}
