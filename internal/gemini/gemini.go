// Package gemini escalates high-candidate articles to Gemini for a citizen
// impact verdict. Every failure path degrades to deterministic local
// scoring; escalation never returns an error to the caller.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/civicbrief/civicbrief/internal/category"
	"github.com/civicbrief/civicbrief/internal/ratelimit"
	"github.com/civicbrief/civicbrief/internal/score"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	maxPromptDescRunes = 200
	fallbackReasoning  = "Rule-based scoring (external classifier unavailable)"
)

// generator is the slice of genai.GenerativeModel the client uses; tests
// substitute a stub to assert call counts.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	client  *genai.Client
	gen     generator
	limiter *ratelimit.Limiter
	timeout time.Duration
	enabled bool
}

// NewClient builds the escalation adapter. An empty API key yields a
// disabled client that answers from the local fallback and performs no
// network I/O at all.
func NewClient(apiKey, model string, timeout time.Duration, limiter *ratelimit.Limiter) (*Client, error) {
	c := &Client{limiter: limiter, timeout: timeout}
	if apiKey == "" {
		slog.Warn("GEMINI_API_KEY not set, escalation runs in rule-only fallback mode")
		return c, nil
	}

	inner, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = inner
	c.gen = inner.GenerativeModel(model)
	c.enabled = true
	return c, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Enabled reports whether a credential is configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Escalate asks the model to rate the article for the target audience and
// returns a fused-ready verdict. Timeouts, bad responses and unparseable
// output all degrade to Fallback(ruleScore).
func (c *Client) Escalate(ctx context.Context, title, description string, cat category.Category, ruleScore int) score.External {
	if !c.enabled || c.gen == nil {
		return Fallback(ruleScore)
	}
	if c.limiter != nil {
		if err := c.limiter.Use(); err != nil {
			slog.Debug("escalation skipped", "reason", err)
			return Fallback(ruleScore)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(title, description, cat)
	resp, err := c.gen.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.Warn("escalation call failed, using fallback", "error", err)
		return Fallback(ruleScore)
	}
	text := responseText(resp)
	if text == "" {
		slog.Warn("empty escalation response, using fallback")
		return Fallback(ruleScore)
	}

	verdict, ok := parseVerdict(text)
	if !ok {
		slog.Warn("unparseable escalation response, using fallback")
		return Fallback(ruleScore)
	}
	return verdict
}

// Fallback derives a verdict purely from the rule score: a capped linear
// transform grounded in the same rule signals, so results are reproducible
// when the external service is down or disabled.
func Fallback(ruleScore int) score.External {
	relevance := 50 + ruleScore/2
	if relevance > 85 {
		relevance = 85
	}
	return score.External{
		Relevance:      relevance,
		LocaleRelevant: false,
		CoreIssue:      true,
		Reasoning:      fallbackReasoning,
		Recommended:    recommend(relevance),
		Fallback:       true,
	}
}

func buildPrompt(title, description string, cat category.Category) string {
	description = strings.Join(strings.Fields(description), " ")
	if utf8.RuneCountInString(description) > maxPromptDescRunes {
		description = string([]rune(description)[:maxPromptDescRunes])
	}

	return fmt.Sprintf(`Evaluate this news item for an average Indian citizen.

Category: %s
Title: %s
Description: %s

Rate on 4 criteria (0-100 each):
1. direct_impact: effect on daily life
2. urgency: how soon the citizen needs to know
3. actionability: whether the citizen can act on it
4. citizen_relevance: relevance to the majority of citizens

Respond ONLY with a JSON object:
{
  "direct_impact": 0-100,
  "urgency": 0-100,
  "actionability": 0-100,
  "citizen_relevance": 0-100,
  "reasoning": "brief explanation"
}`, cat.NameEN, title, description)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// verdictPayload is the wire shape of the model's answer.
type verdictPayload struct {
	DirectImpact     int    `json:"direct_impact"`
	Urgency          int    `json:"urgency"`
	Actionability    int    `json:"actionability"`
	CitizenRelevance int    `json:"citizen_relevance"`
	Reasoning        string `json:"reasoning"`
}

// parseVerdict extracts the first balanced JSON object from the response
// text (models routinely wrap it in prose or code fences) and maps it to a
// verdict. Parse failure is an expected outcome, not an exceptional one.
func parseVerdict(text string) (score.External, bool) {
	raw, ok := extractJSON(text)
	if !ok {
		return score.External{}, false
	}

	var p verdictPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return score.External{}, false
	}

	p.DirectImpact = clampScore(p.DirectImpact)
	p.Urgency = clampScore(p.Urgency)
	p.Actionability = clampScore(p.Actionability)
	p.CitizenRelevance = clampScore(p.CitizenRelevance)

	relevance := (p.DirectImpact + p.Urgency + p.Actionability + p.CitizenRelevance) / 4
	return score.External{
		Relevance:      relevance,
		LocaleRelevant: p.CitizenRelevance >= 60,
		CoreIssue:      p.DirectImpact >= 50,
		Reasoning:      strings.TrimSpace(p.Reasoning),
		Recommended:    recommend(relevance),
	}, true
}

func recommend(relevance int) score.Action {
	switch {
	case relevance >= 70:
		return score.ActionUrgent
	case relevance >= 40:
		return score.ActionMonitor
	default:
		return score.ActionSkip
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
