package automod

import (
	"context"
	"fmt"

	"github.com/hanghive/ai-gateway/internal/toxicity"
)

// Pipeline evaluates messages against the classifiers in a fixed priority
// order: spam, suspicious, unsafe, toxic. It is stateless across calls;
// the only shared state is the toxicity detector's guarded backend handle.
type Pipeline struct {
	detector *toxicity.Detector
}

// NewPipeline creates a Pipeline using the given toxicity detector for the
// unsafe and toxic checks.
func NewPipeline(detector *toxicity.Detector) *Pipeline {
	return &Pipeline{detector: detector}
}

// Evaluate runs the classifiers in order and returns the verdict of the
// first one that blocks. Classifiers after the first blocking one are not
// evaluated. Classifier-internal backend failures degrade inside the
// classifiers and never surface here; the returned error is reserved for
// pipeline-level failures such as context cancellation.
func (p *Pipeline) Evaluate(ctx context.Context, msg Message) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, fmt.Errorf("automod: evaluate: %w", err)
	}

	if v := checkSpam(msg.Text); v.Blocked {
		return v, nil
	}
	if v := checkSuspicious(msg.Text, msg.Recent); v.Blocked {
		return v, nil
	}
	if v := checkUnsafe(ctx, p.detector, msg.Text); v.Blocked {
		return v, nil
	}
	if v := p.checkToxic(ctx, msg.Text); v.Blocked {
		return v, nil
	}

	return Clean(), nil
}

// IsUnsafe reports whether text matches the unsafe-content patterns or is
// flagged as threat/hate by the toxicity backend.
func (p *Pipeline) IsUnsafe(ctx context.Context, text string) bool {
	return checkUnsafe(ctx, p.detector, text).Blocked
}

// IsToxic reports whether text is considered toxic by the backend or the
// keyword fallback.
func (p *Pipeline) IsToxic(ctx context.Context, text string) bool {
	return p.checkToxic(ctx, text).Blocked
}

// checkToxic scores the message and blocks on a model-toxic result or a
// blacklisted token. The backend label and score are carried into the
// verdict for the event log.
func (p *Pipeline) checkToxic(ctx context.Context, text string) Verdict {
	if text == "" {
		return Clean()
	}

	score := p.detector.Check(ctx, text)
	if toxicity.IsModelToxic(score.Label, score.Confidence) {
		return Verdict{
			Blocked:  true,
			Reason:   ReasonToxic,
			Term:     "model",
			ToxLabel: score.Label,
			ToxScore: score.Confidence,
		}
	}
	if toxicity.HasBlacklistedToken(text) {
		return Verdict{Blocked: true, Reason: ReasonToxic, Term: "blacklist"}
	}
	return Clean()
}
