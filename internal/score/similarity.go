package score

import (
	"math"
	"strings"
)

// similarityScore computes cosine similarity between term-frequency
// vectors of the article text and the category vocabulary, scaled to 0-10
// and truncated. Degenerate input (empty text or vocabulary) scores 0;
// this layer never errors.
func similarityScore(text, vocabulary string) int {
	a := termFrequencies(text)
	b := termFrequencies(vocabulary)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, fa := range a {
		normA += fa * fa
		if fb, ok := b[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range b {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	scaled := int(cos * float64(capSimilarity))
	if scaled > capSimilarity {
		scaled = capSimilarity
	}
	if scaled < 0 {
		scaled = 0
	}
	return scaled
}

func termFrequencies(s string) map[string]float64 {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return nil
	}
	freq := make(map[string]float64, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 3 {
			continue
		}
		freq[f]++
	}
	return freq
}
