package automod

import (
	"context"
	"errors"
	"testing"

	"github.com/hanghive/ai-gateway/internal/genai"
	"github.com/hanghive/ai-gateway/internal/toxicity"
)

// fakeClassifier returns a fixed classification and counts calls.
type fakeClassifier struct {
	label string
	score float64
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (genai.Classification, error) {
	f.calls++
	return genai.Classification{Label: f.label, Score: f.score}, nil
}

// newFakeDetector wires a detector around a fakeClassifier backend.
func newFakeDetector(fc *fakeClassifier) *toxicity.Detector {
	return toxicity.NewDetector(func() (toxicity.Classifier, error) {
		return fc, nil
	})
}

// newDownDetector wires a detector whose backend can never be reached.
func newDownDetector() *toxicity.Detector {
	return toxicity.NewDetector(func() (toxicity.Classifier, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
}

// TestUnsafe_Patterns verifies the fixed unsafe-content patterns and the
// pattern name carried in the verdict.
func TestUnsafe_Patterns(t *testing.T) {
	detector := newDownDetector() // patterns must not need the backend
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		blocked bool
		term    string
	}{
		{"threat", "I will kill you", true, "threat"},
		{"threat contraction", "i'm going to hurt you", true, "threat"},
		{"self harm", "I want to end my life", true, "self_harm"},
		{"pii solicitation", "contact me at 555-0100", true, "pii"},
		{"explicit", "send me a nude", true, "explicit"},
		{"kill in game context", "that boss will kill my whole party", false, ""},
		{"clean", "let's grab lunch tomorrow", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkUnsafe(ctx, detector, tt.input)
			if result.Blocked != tt.blocked {
				t.Errorf("checkUnsafe(%q).Blocked = %v, want %v", tt.input, result.Blocked, tt.blocked)
			}
			if tt.blocked && result.Term != tt.term {
				t.Errorf("checkUnsafe(%q).Term = %q, want %q", tt.input, result.Term, tt.term)
			}
			if tt.blocked && result.Reason != ReasonUnsafe {
				t.Errorf("Reason = %q, want %q", result.Reason, ReasonUnsafe)
			}
		})
	}
}

// TestUnsafe_ModelEscalation verifies that a high-confidence threat or
// hate label from the backend escalates to unsafe even without a pattern
// match.
func TestUnsafe_ModelEscalation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		label   string
		score   float64
		blocked bool
	}{
		{"threat label high", "threat", 0.9, true},
		{"hate label high", "hate_speech", 0.75, true},
		{"threat label low score", "threat", 0.5, false},
		{"toxic label not escalated", "toxic", 0.99, false},
		{"clean label", "clean", 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClassifier{label: tt.label, score: tt.score}
			result := checkUnsafe(ctx, newFakeDetector(fc), "you people make me sick")
			if result.Blocked != tt.blocked {
				t.Errorf("blocked = %v, want %v (term=%q)", result.Blocked, tt.blocked, result.Term)
			}
			if tt.blocked {
				if result.Term != "model_"+tt.label {
					t.Errorf("Term = %q, want %q", result.Term, "model_"+tt.label)
				}
				if result.ToxLabel != tt.label || result.ToxScore != tt.score {
					t.Errorf("verdict label/score = %q/%v, want %q/%v",
						result.ToxLabel, result.ToxScore, tt.label, tt.score)
				}
			}
		})
	}
}

// TestUnsafe_BackendDownDegradesToPatterns verifies that the check still
// blocks on patterns and passes everything else when the backend is
// unreachable.
func TestUnsafe_BackendDownDegradesToPatterns(t *testing.T) {
	detector := newDownDetector()
	ctx := context.Background()

	if result := checkUnsafe(ctx, detector, "i will kill you"); !result.Blocked {
		t.Error("expected pattern match to block with backend down")
	}
	if result := checkUnsafe(ctx, detector, "you people make me sick"); result.Blocked {
		t.Errorf("expected no model escalation with backend down, got term=%q", result.Term)
	}
}
