package toxicity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hanghive/ai-gateway/internal/genai"
)

// stubClassifier returns a fixed classification or error and records the
// last text it was asked to score.
type stubClassifier struct {
	label    string
	score    float64
	err      error
	lastText string
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (genai.Classification, error) {
	s.lastText = text
	if s.err != nil {
		return genai.Classification{}, s.err
	}
	return genai.Classification{Label: s.label, Score: s.score}, nil
}

func TestCheck_EmptyText(t *testing.T) {
	dialed := false
	d := NewDetector(func() (Classifier, error) {
		dialed = true
		return &stubClassifier{}, nil
	})

	got := d.Check(context.Background(), "")
	if got.Label != "clean" || got.Confidence != 0.0 {
		t.Errorf("Check(\"\") = %+v, want clean/0.0", got)
	}
	if dialed {
		t.Error("empty text must not dial the backend")
	}
}

func TestCheck_BackendScore(t *testing.T) {
	stub := &stubClassifier{label: "toxic", score: 0.91}
	d := NewDetector(func() (Classifier, error) { return stub, nil })

	got := d.Check(context.Background(), "whatever you say")
	if got.Label != "toxic" || got.Confidence != 0.91 {
		t.Errorf("Check() = %+v, want toxic/0.91", got)
	}
}

func TestCheck_TruncatesLongInput(t *testing.T) {
	stub := &stubClassifier{label: "clean"}
	d := NewDetector(func() (Classifier, error) { return stub, nil })

	long := strings.Repeat("héllo ", 200) // 1200 runes
	d.Check(context.Background(), long)

	if n := len([]rune(stub.lastText)); n != maxInputRunes {
		t.Errorf("backend received %d runes, want %d", n, maxInputRunes)
	}
}

// TestCheck_FallbackOnDialFailure verifies the keyword blacklist decides
// when the backend cannot be constructed.
func TestCheck_FallbackOnDialFailure(t *testing.T) {
	d := NewDetector(func() (Classifier, error) {
		return nil, errors.New("connection refused")
	})
	ctx := context.Background()

	got := d.Check(ctx, "you are an idiot")
	if got.Label != "heuristic_toxic" || got.Confidence != 1.0 {
		t.Errorf("Check() = %+v, want heuristic_toxic/1.0", got)
	}

	got = d.Check(ctx, "nice weather")
	if got.Label != "clean" || got.Confidence != 0.0 {
		t.Errorf("Check() = %+v, want clean/0.0", got)
	}
}

// TestCheck_FallbackOnClassifyError verifies a per-call backend error also
// degrades to the blacklist.
func TestCheck_FallbackOnClassifyError(t *testing.T) {
	stub := &stubClassifier{err: errors.New("upstream 503")}
	d := NewDetector(func() (Classifier, error) { return stub, nil })

	got := d.Check(context.Background(), "total shit")
	if got.Label != "heuristic_toxic" {
		t.Errorf("Check() label = %q, want heuristic_toxic", got.Label)
	}
}

// TestDialOnce verifies both a success and a failure are cached: the dial
// function runs at most once across repeated checks.
func TestDialOnce(t *testing.T) {
	t.Run("success cached", func(t *testing.T) {
		dials := 0
		d := NewDetector(func() (Classifier, error) {
			dials++
			return &stubClassifier{label: "clean"}, nil
		})
		ctx := context.Background()
		d.Check(ctx, "one")
		d.Check(ctx, "two")
		d.Check(ctx, "three")
		if dials != 1 {
			t.Errorf("dial ran %d times, want 1", dials)
		}
	})

	t.Run("failure cached", func(t *testing.T) {
		dials := 0
		d := NewDetector(func() (Classifier, error) {
			dials++
			return nil, errors.New("down")
		})
		ctx := context.Background()
		d.Check(ctx, "one")
		d.Check(ctx, "two")
		if dials != 1 {
			t.Errorf("dial ran %d times, want 1", dials)
		}
	})
}

// TestWarmUp_RetriesCachedFailure verifies WarmUp clears a cached failure
// and dials again, and that a recovered backend is then used.
func TestWarmUp_RetriesCachedFailure(t *testing.T) {
	dials := 0
	healthy := false
	d := NewDetector(func() (Classifier, error) {
		dials++
		if !healthy {
			return nil, errors.New("still starting")
		}
		return &stubClassifier{label: "toxic", score: 0.8}, nil
	})
	ctx := context.Background()

	if d.WarmUp() {
		t.Fatal("WarmUp() = true while backend is down")
	}
	d.Check(ctx, "hello") // cached failure, no new dial
	if dials != 1 {
		t.Fatalf("dial ran %d times, want 1", dials)
	}

	healthy = true
	if !d.WarmUp() {
		t.Fatal("WarmUp() = false after backend recovered")
	}
	if dials != 2 {
		t.Errorf("dial ran %d times, want 2", dials)
	}

	got := d.Check(ctx, "hello")
	if got.Label != "toxic" {
		t.Errorf("Check() label = %q after recovery, want toxic", got.Label)
	}
}

// TestConcurrentFirstUse verifies concurrent first checks construct the
// backend exactly once.
func TestConcurrentFirstUse(t *testing.T) {
	dials := 0
	d := NewDetector(func() (Classifier, error) {
		dials++
		return &stubClassifier{label: "clean"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Check(context.Background(), "hello")
		}()
	}
	wg.Wait()

	if dials != 1 {
		t.Errorf("dial ran %d times under concurrency, want 1", dials)
	}
}

func TestIsToxic(t *testing.T) {
	tests := []struct {
		name  string
		stub  *stubClassifier
		text  string
		toxic bool
	}{
		{"model flags", &stubClassifier{label: "toxic", score: 0.9}, "whatever", true},
		{"model below threshold", &stubClassifier{label: "toxic", score: 0.3}, "whatever", false},
		{"model clean but blacklisted", &stubClassifier{label: "clean", score: 0.0}, "you are an idiot", true},
		{"model clean and clean text", &stubClassifier{label: "clean", score: 0.0}, "good morning", false},
		{"backend error blacklisted", &stubClassifier{err: errors.New("down")}, "you are an idiot", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(func() (Classifier, error) { return tt.stub, nil })
			if got := d.IsToxic(context.Background(), tt.text); got != tt.toxic {
				t.Errorf("IsToxic(%q) = %v, want %v", tt.text, got, tt.toxic)
			}
		})
	}
}

func TestIsModelToxic(t *testing.T) {
	tests := []struct {
		label string
		score float64
		want  bool
	}{
		{"toxic", 0.9, true},
		{"TOXICITY", 0.7, true},
		{"insult_severe", 0.61, true},
		{"offensive", 0.6, true},
		{"hate_speech", 0.99, true},
		{"toxic", 0.59, false},
		{"clean", 1.0, false},
		{"", 1.0, false},
		{"positive", 0.9, false},
	}

	for _, tt := range tests {
		if got := IsModelToxic(tt.label, tt.score); got != tt.want {
			t.Errorf("IsModelToxic(%q, %v) = %v, want %v", tt.label, tt.score, got, tt.want)
		}
	}
}

func TestHasBlacklistedToken(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"you are an IDIOT", true},
		{"i hate mondays", true},
		{"kill the lights please", true},
		{"idiotic plan", false}, // whole tokens only
		{"skillful move", false},
		{"good morning", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := HasBlacklistedToken(tt.input); got != tt.want {
			t.Errorf("HasBlacklistedToken(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
