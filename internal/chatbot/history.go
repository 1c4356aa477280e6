package chatbot

import "sync"

// MaxHistoryTurns is the number of user/assistant exchanges retained per
// conversation.
const MaxHistoryTurns = 10

// Turn is one prior conversation turn. Role is "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History stores the last N turns of a conversation in memory. It is
// goroutine-safe and uses a ring buffer internally, so long-running
// sessions never grow unbounded.
type History struct {
	mu    sync.Mutex
	items []Turn
	pos   int
	count int
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{items: make([]Turn, MaxHistoryTurns*2)}
}

// Add appends a turn. If the buffer is full, the oldest turn is
// overwritten.
func (h *History) Add(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.pos] = Turn{Role: role, Content: content}
	h.pos = (h.pos + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Turns returns the retained turns in chronological order (oldest first).
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]Turn, h.count)
	start := (h.pos - h.count + len(h.items)) % len(h.items)
	for i := 0; i < h.count; i++ {
		result[i] = h.items[(start+i)%len(h.items)]
	}
	return result
}

// UserTexts returns the content of the retained user turns in
// chronological order. This is the recency window handed to the
// suspicious-activity classifier.
func (h *History) UserTexts() []string {
	var texts []string
	for _, turn := range h.Turns() {
		if turn.Role == "user" {
			texts = append(texts, turn.Content)
		}
	}
	return texts
}
