// Package automod implements the automoderation decision pipeline: an
// ordered sequence of independent classifiers (spam, suspicious activity,
// unsafe content, toxicity) that must all pass before a message is allowed
// through to reply generation. The first blocking classifier determines
// the verdict and terminates evaluation.
package automod

import (
	"time"

	"github.com/google/uuid"
)

// Reason identifies which classifier blocked a message.
type Reason string

const (
	ReasonSpam       Reason = "spam"
	ReasonSuspicious Reason = "suspicious"
	ReasonUnsafe     Reason = "unsafe"
	ReasonToxic      Reason = "toxic"
)

// Verdict is the pipeline's terminal decision for one message. When
// Blocked is false the other fields are zero.
type Verdict struct {
	Blocked  bool
	Reason   Reason
	Term     string  // which specific check matched, for audit metadata
	ToxLabel string  // backend label, set for toxic blocks
	ToxScore float64 // backend confidence, set for toxic blocks
}

// Clean is the verdict for a message no classifier blocked.
func Clean() Verdict {
	return Verdict{}
}

// Message is one inbound message with the context the classifiers need.
// Recent is the ordered recency window of prior message texts supplied by
// the caller; the classifiers themselves hold no cross-message state.
type Message struct {
	SenderID string
	Text     string
	Recent   []string
}

// CheckRequest is published to the automod.check subject when a message
// needs an asynchronous content review.
type CheckRequest struct {
	RequestID string   `json:"request_id"`
	SenderID  string   `json:"sender_id,omitempty"`
	Text      string   `json:"text"`
	Recent    []string `json:"recent,omitempty"`
	Ts        int64    `json:"ts"`
}

// NewCheckRequest builds a check request with a fresh request id, ready to
// publish. The result arrives on automod.result.<request_id>.
func NewCheckRequest(senderID, text string, recent []string) CheckRequest {
	return CheckRequest{
		RequestID: uuid.NewString(),
		SenderID:  senderID,
		Text:      text,
		Recent:    recent,
		Ts:        time.Now().Unix(),
	}
}

// CheckResult is published back on automod.result.<request_id> with the
// review outcome.
type CheckResult struct {
	RequestID string  `json:"request_id"`
	Blocked   bool    `json:"blocked"`
	Reason    string  `json:"reason,omitempty"`
	Term      string  `json:"term,omitempty"`
	ToxLabel  string  `json:"tox_label,omitempty"`
	ToxScore  float64 `json:"tox_score,omitempty"`
}
