// Package toxicity scores message text through an external classification
// backend and degrades to a deterministic keyword blacklist whenever the
// backend is unavailable or errors. The classifier boundary never returns
// an error to callers: every failure path resolves to a (label, score)
// pair.
package toxicity

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/hanghive/ai-gateway/internal/genai"
)

// Score is a free-form label plus a confidence in [0, 1]. The label set is
// not contractually fixed; it originates from the external classifier.
type Score struct {
	Label      string
	Confidence float64
}

// Classifier is the external scoring backend boundary.
type Classifier interface {
	Classify(ctx context.Context, text string) (genai.Classification, error)
}

// toxicIndicators are matched as case-insensitive substrings of the
// backend label, so small label vocabulary drift ("toxicity", "TOXIC",
// "insult_severe") keeps matching without an exact enum.
var toxicIndicators = []string{"tox", "abuse", "offens", "insult", "threat", "hate"}

// blacklist is the fallback banned-word set used when the backend cannot
// score a message.
var blacklist = map[string]bool{
	"fuck":  true,
	"shit":  true,
	"bitch": true,
	"idiot": true,
	"kill":  true,
	"hate":  true,
}

var wordPattern = regexp.MustCompile(`\w+`)

// maxInputRunes is the classification backend's input limit; longer text
// is truncated before the call.
const maxInputRunes = 512

// scoreThreshold is the minimum confidence for a backend label to count.
const scoreThreshold = 0.6

type detectorState int

const (
	stateUninitialized detectorState = iota
	stateReady
	stateFailed
)

// Detector wraps the classification backend with guarded lazy
// initialization and the keyword fallback. The zero lifecycle is
// uninitialized -> ready or uninitialized -> failed (cached); WarmUp
// clears a cached failure and retries.
type Detector struct {
	mu      sync.Mutex
	state   detectorState
	backend Classifier
	initErr error
	dial    func() (Classifier, error)
}

// NewDetector creates a Detector that constructs its backend with dial on
// first use or on WarmUp.
func NewDetector(dial func() (Classifier, error)) *Detector {
	return &Detector{dial: dial}
}

// WarmUp eagerly initializes the classification backend. A previously
// cached failure gets a fresh attempt. Returns true when ready.
func (d *Detector) WarmUp() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateFailed {
		d.state = stateUninitialized
		d.initErr = nil
	}
	if d.state == stateReady {
		return true
	}
	_, err := d.getLocked()
	return err == nil
}

// get returns the ready backend, initializing it on first call. A cached
// failure is returned without re-dialing.
func (d *Detector) get() (Classifier, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case stateReady:
		return d.backend, nil
	case stateFailed:
		return nil, d.initErr
	}
	return d.getLocked()
}

func (d *Detector) getLocked() (Classifier, error) {
	backend, err := d.dial()
	if err != nil {
		d.state = stateFailed
		d.initErr = err
		return nil, err
	}
	d.state = stateReady
	d.backend = backend
	return backend, nil
}

// Check scores text. Empty text is ("clean", 0.0) without a backend call.
// On any backend failure the keyword blacklist decides: a banned token
// yields ("heuristic_toxic", 1.0), otherwise ("clean", 0.0).
func (d *Detector) Check(ctx context.Context, text string) Score {
	if text == "" {
		return Score{Label: "clean", Confidence: 0.0}
	}

	backend, err := d.get()
	if err != nil {
		return fallbackScore(text)
	}

	result, err := backend.Classify(ctx, truncate(text, maxInputRunes))
	if err != nil {
		return fallbackScore(text)
	}
	return Score{Label: result.Label, Confidence: result.Score}
}

// IsToxic reports whether text should be treated as toxic: the backend
// label matches a toxic indicator at sufficient confidence, or failing
// that, the keyword blacklist contains one of its tokens.
func (d *Detector) IsToxic(ctx context.Context, text string) bool {
	score := d.Check(ctx, text)
	if IsModelToxic(score.Label, score.Confidence) {
		return true
	}
	return HasBlacklistedToken(text)
}

// IsModelToxic applies the label-substring + threshold test shared by the
// toxic and unsafe classifiers.
func IsModelToxic(label string, score float64) bool {
	if label == "" || score < scoreThreshold {
		return false
	}
	low := strings.ToLower(label)
	for _, sub := range toxicIndicators {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}

func fallbackScore(text string) Score {
	if HasBlacklistedToken(text) {
		return Score{Label: "heuristic_toxic", Confidence: 1.0}
	}
	return Score{Label: "clean", Confidence: 0.0}
}

// HasBlacklistedToken reports whether any word-boundary token of text is
// in the banned-word set. This is the raw fallback test, exposed for
// callers that already have a backend score in hand.
func HasBlacklistedToken(text string) bool {
	for _, token := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if blacklist[token] {
			return true
		}
	}
	return false
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
