package automod

import (
	"context"
	"regexp"
	"strings"

	"github.com/hanghive/ai-gateway/internal/toxicity"
)

// unsafePattern pairs a compiled pattern with the name reported for audit.
// Self-harm, threat, PII-solicitation and explicit-sexual phrasing share
// the single "unsafe" reason; the matched pattern name is carried in the
// verdict for the event log.
type unsafePattern struct {
	name    string
	pattern *regexp.Regexp
}

// unsafePatterns are matched against the lower-cased text.
var unsafePatterns = []unsafePattern{
	{name: "threat", pattern: regexp.MustCompile(`\b(i will kill|i'm going to kill|i'm going to hurt)\b`)},
	{name: "self_harm", pattern: regexp.MustCompile(`\b(suicide|kill myself|end my life)\b`)},
	{name: "pii", pattern: regexp.MustCompile(`\b(contact me at|my ssn|credit card)\b`)},
	{name: "explicit", pattern: regexp.MustCompile(`\b(nude|sex with)\b`)},
}

// checkUnsafe matches the fixed unsafe-content patterns and, when none
// match, asks the toxicity backend for a threat/hate signal. A backend
// failure degrades to pattern-only: the Detector already resolves failures
// to a fallback score, and a fallback score never carries a threat or hate
// label.
func checkUnsafe(ctx context.Context, detector *toxicity.Detector, text string) Verdict {
	if text == "" {
		return Clean()
	}

	low := strings.ToLower(text)
	for _, up := range unsafePatterns {
		if up.pattern.MatchString(low) {
			return Verdict{Blocked: true, Reason: ReasonUnsafe, Term: up.name}
		}
	}

	score := detector.Check(ctx, text)
	label := strings.ToLower(score.Label)
	if (strings.Contains(label, "threat") || strings.Contains(label, "hate")) && score.Confidence >= 0.6 {
		return Verdict{
			Blocked:  true,
			Reason:   ReasonUnsafe,
			Term:     "model_" + score.Label,
			ToxLabel: score.Label,
			ToxScore: score.Confidence,
		}
	}

	return Clean()
}
