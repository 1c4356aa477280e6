// Package summarizer produces short conversation summaries through the
// summarization backend, chunking long input and combining partial
// summaries. When the backend is unavailable it degrades to an extractive
// first-N-words summary, so callers always get a string back.
package summarizer

import (
	"context"
	"log"
	"strings"

	"github.com/hanghive/ai-gateway/internal/genai"
)

const (
	// maxChunkChars bounds each chunk handed to the backend.
	maxChunkChars = 2000

	// Backend summary length bounds, in backend tokens.
	summaryMaxLength = 130
	summaryMinLength = 20

	// combineMinLength is the lower bound for the second compression
	// pass over combined partial summaries.
	combineMinLength = 30

	// DefaultMaxWords is the word cap applied when the caller does not
	// specify one.
	DefaultMaxWords = 60
)

// Summarizer generates summaries through a lazily-initialized backend.
type Summarizer struct {
	backend *genai.Backend
}

// New creates a Summarizer using the given backend handle.
func New(backend *genai.Backend) *Summarizer {
	return &Summarizer{backend: backend}
}

// WarmUp eagerly initializes the summarization backend.
func (s *Summarizer) WarmUp() bool {
	return s.backend.WarmUp()
}

// Summarize returns a summary of text capped at maxWords words. Empty or
// blank text returns "". Long input is chunked, each chunk summarized,
// and multiple partials compressed once more. On any backend failure the
// extractive fallback returns the first maxWords words of the input.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxWords int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if maxWords < 0 {
		maxWords = 0
	}

	summary, err := s.summarizeBackend(ctx, text)
	if err != nil {
		log.Printf("[summarizer] backend failed, falling back to extractive summary: %v", err)
		return extractive(text, maxWords)
	}
	return capWords(summary, maxWords)
}

func (s *Summarizer) summarizeBackend(ctx context.Context, text string) (string, error) {
	client, err := s.backend.Get()
	if err != nil {
		return "", err
	}

	chunks := chunkText(text, maxChunkChars)
	if len(chunks) == 0 {
		return "", nil
	}

	var partials []string
	for _, chunk := range chunks {
		out, err := client.Summarize(ctx, chunk, summaryMaxLength, summaryMinLength)
		if err != nil {
			return "", err
		}
		if out != "" {
			partials = append(partials, out)
		}
	}

	combined := strings.Join(partials, " ")
	if len(partials) > 1 {
		out, err := client.Summarize(ctx, combined, summaryMaxLength, combineMinLength)
		if err != nil {
			return "", err
		}
		if out != "" {
			combined = out
		}
	}
	return strings.TrimSpace(combined), nil
}

// chunkText splits text into sentence-aligned chunks no longer than
// maxChars (a single oversized sentence becomes its own chunk).
func chunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0
	for _, s := range splitSentences(text) {
		if currentLen+len(s)+1 > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{s}
			currentLen = len(s)
		} else {
			current = append(current, s)
			currentLen += len(s) + 1
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitSentences splits after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// capWords enforces the word cap, appending an ellipsis when the summary
// was cut.
func capWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.TrimSpace(text)
	}
	if maxWords == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(words[:maxWords], " ")) + "..."
}

// extractive is the no-backend fallback: the first maxWords words of the
// input, with an ellipsis when the input was longer.
func extractive(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) == 0 || maxWords == 0 {
		return ""
	}
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
