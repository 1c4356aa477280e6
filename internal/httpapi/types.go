// Package httpapi implements the gateway's HTTP and websocket surface:
// the chat and summarize endpoints, the admin moderation views, and a
// streaming websocket chat. All payloads are JSON.
package httpapi

// ChatRequest is an inbound chat message. Context items are either plain
// strings (treated as user messages) or {role, content} objects.
type ChatRequest struct {
	SenderID       string `json:"user_id,omitempty"`
	Message        string `json:"message"`
	Context        []any  `json:"context,omitempty"`
	CommunityType  string `json:"community_type,omitempty"`
	RequireMention bool   `json:"require_mention,omitempty"`
}

// ChatResponse is the outcome of a chat request. Handled is false only
// when require_mention was set and the message carried no @AI mention.
type ChatResponse struct {
	Handled bool   `json:"handled"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

// SummarizeRequest asks for a short summary of a conversation transcript.
// MaxLength is the word cap; zero means the default. SenderID feeds the
// rate limiter; anonymous requests are limited per remote address instead.
type SummarizeRequest struct {
	SenderID     string `json:"user_id,omitempty"`
	Conversation string `json:"conversation"`
	MaxLength    int    `json:"max_length,omitempty"`
}

// SummarizeResponse carries the summary text.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// ErrorResponse is the JSON body for non-2xx responses.
type ErrorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// EventsResponse wraps the admin moderation event listing.
type EventsResponse struct {
	Count  int `json:"count"`
	Events any `json:"events"`
}
