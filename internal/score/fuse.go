package score

import "math"

// Publish thresholds. Articles that never cleared the escalation floor
// publish on the rule score alone at the lower bar; escalated articles
// publish on the fused score at the higher bar.
const (
	PublishThresholdRule  = 40
	PublishThresholdFused = 60
)

// Fusion weights and modifiers.
const (
	ruleWeight       = 0.4
	externalWeight   = 0.6
	coreIssuePenalty = 15
	localeBonus      = 10
)

// Action is the external classifier's recommended handling.
type Action string

const (
	ActionUrgent  Action = "urgent"
	ActionMonitor Action = "monitor"
	ActionSkip    Action = "skip"
)

// External is the escalation adapter's verdict for one article. Fallback
// marks verdicts derived locally instead of from the external service.
type External struct {
	Relevance      int // 0-100
	LocaleRelevant bool
	CoreIssue      bool
	Reasoning      string
	Recommended    Action
	Fallback       bool
}

// Fuse combines the rule score with the external verdict. A nil ext means
// the article never cleared the escalation floor: the rule score stands
// alone and the lower publish threshold applies.
func Fuse(ruleTotal int, ext *External) (final int, show bool) {
	if ext == nil {
		final = clamp(ruleTotal)
		return final, final >= PublishThresholdRule
	}

	fused := ruleWeight*float64(ruleTotal) + externalWeight*float64(ext.Relevance)
	if !ext.CoreIssue {
		fused -= coreIssuePenalty
	}
	if ext.LocaleRelevant {
		fused += localeBonus
	}
	final = clamp(int(math.Round(fused)))
	return final, final >= PublishThresholdFused
}

// PublishThreshold returns the bar a final score must clear for the given
// regime, for callers that re-check after post-fusion adjustments.
func PublishThreshold(escalated bool) int {
	if escalated {
		return PublishThresholdFused
	}
	return PublishThresholdRule
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
