package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hanghive/ai-gateway/internal/genai"
)

// newFakeSumServer runs a summarization backend that answers every request
// with summary and counts calls.
func newFakeSumServer(t *testing.T, summary string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/summarize", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"summary":%q}`, summary)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newSummarizer(url string) *Summarizer {
	return New(genai.NewBackend(genai.Dialer(url, "distilbart")))
}

func TestSummarize_Backend(t *testing.T) {
	srv, calls := newFakeSumServer(t, "they planned a picnic for saturday")
	s := newSummarizer(srv.URL)

	got := s.Summarize(context.Background(), "a long conversation about picnic planning.", 60)
	if got != "they planned a picnic for saturday" {
		t.Errorf("Summarize() = %q", got)
	}
	if *calls != 1 {
		t.Errorf("backend called %d times, want 1", *calls)
	}
}

func TestSummarize_BlankInput(t *testing.T) {
	s := newSummarizer("http://127.0.0.1:1")
	for _, input := range []string{"", "   ", "\n\t"} {
		if got := s.Summarize(context.Background(), input, 60); got != "" {
			t.Errorf("Summarize(%q) = %q, want empty", input, got)
		}
	}
}

func TestSummarize_FallbackWhenBackendDown(t *testing.T) {
	s := newSummarizer("http://127.0.0.1:1")

	got := s.Summarize(context.Background(), "alice said hi and bob asked about the game", 5)
	if got != "alice said hi and bob..." {
		t.Errorf("Summarize() = %q, want extractive prefix", got)
	}

	// Short input fits entirely.
	got = s.Summarize(context.Background(), "short note", 60)
	if got != "short note" {
		t.Errorf("Summarize() = %q, want %q", got, "short note")
	}
}

// TestSummarize_WordCapProperty verifies the cap holds for every maxWords,
// including zero, on both the backend and fallback paths.
func TestSummarize_WordCapProperty(t *testing.T) {
	srv, _ := newFakeSumServer(t, strings.Repeat("word ", 100))
	backendUp := newSummarizer(srv.URL)
	backendDown := newSummarizer("http://127.0.0.1:1")

	input := strings.Repeat("chatter ", 200)
	for _, maxWords := range []int{0, 1, 5, 60, 1000} {
		for name, s := range map[string]*Summarizer{"backend": backendUp, "fallback": backendDown} {
			got := s.Summarize(context.Background(), input, maxWords)
			if n := len(strings.Fields(got)); n > maxWords {
				t.Errorf("%s: maxWords=%d produced %d words: %q", name, maxWords, n, got)
			}
		}
	}
}

func TestSummarize_NegativeMaxWords(t *testing.T) {
	s := newSummarizer("http://127.0.0.1:1")
	if got := s.Summarize(context.Background(), "some text here", -5); got != "" {
		t.Errorf("Summarize() with negative cap = %q, want empty", got)
	}
}

// TestSummarize_ChunksLongInput verifies long input is split, each chunk
// summarized, and the partials compressed in a second pass.
func TestSummarize_ChunksLongInput(t *testing.T) {
	srv, calls := newFakeSumServer(t, "partial summary.")
	s := newSummarizer(srv.URL)

	// ~3000 chars of distinct sentences forces at least two chunks.
	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "Sentence number %d talks about the day. ", i)
	}

	got := s.Summarize(context.Background(), b.String(), 60)
	if got == "" {
		t.Fatal("expected non-empty summary")
	}
	// Two chunk calls plus one combine call.
	if *calls < 3 {
		t.Errorf("backend called %d times, want at least 3 (chunks + combine)", *calls)
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxChars int
		want     int
	}{
		{"empty", "", 100, 0},
		{"fits one chunk", "Short one. Short two.", 100, 1},
		{"splits on sentence boundary", "aaaa. bbbb. cccc. dddd.", 11, 3},
		{"oversized sentence kept whole", strings.Repeat("x", 50) + ".", 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkText(tt.input, tt.maxChars)
			if len(chunks) != tt.want {
				t.Errorf("chunkText() produced %d chunks, want %d: %v", len(chunks), tt.want, chunks)
			}
			for _, c := range chunks {
				if strings.TrimSpace(c) == "" {
					t.Error("produced blank chunk")
				}
			}
		})
	}
}

func TestCapWords(t *testing.T) {
	tests := []struct {
		input    string
		maxWords int
		want     string
	}{
		{"one two three", 5, "one two three"},
		{"one two three four five six", 3, "one two three..."},
		{"one two", 0, ""},
		{"", 0, ""},
		{"", 10, ""},
	}

	for _, tt := range tests {
		if got := capWords(tt.input, tt.maxWords); got != tt.want {
			t.Errorf("capWords(%q, %d) = %q, want %q", tt.input, tt.maxWords, got, tt.want)
		}
	}
}

func TestExtractive(t *testing.T) {
	tests := []struct {
		input    string
		maxWords int
		want     string
	}{
		{"a b c", 10, "a b c"},
		{"a b c d", 2, "a b..."},
		{"a b", 0, ""},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := extractive(tt.input, tt.maxWords); got != tt.want {
			t.Errorf("extractive(%q, %d) = %q, want %q", tt.input, tt.maxWords, got, tt.want)
		}
	}
}
