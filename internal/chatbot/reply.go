// Package chatbot generates assistant replies: it assembles the prompt
// (community-flavored system role, few-shot examples, trimmed history,
// current turn), calls the text-generation backend, and post-processes the
// raw continuation into a clean reply. The generation path never returns
// an error to its caller; every failure resolves to a fixed fallback
// string.
package chatbot

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/hanghive/ai-gateway/internal/genai"
	"github.com/hanghive/ai-gateway/internal/metrics"
)

// Generation hyper-parameters forwarded to the backend. Short replies keep
// generation fast.
var generationParams = genai.CompletionParams{
	MaxNewTokens:      64,
	Temperature:       0.7,
	TopP:              0.9,
	RepetitionPenalty: 1.2,
	PadTokenID:        50256,
}

// maxReplyChars is the hard cap on reply length after post-processing.
const maxReplyChars = 500

// ValidCommunityTypes are the accepted community flavors. Invalid values
// fall back to "general".
var ValidCommunityTypes = map[string]bool{
	"general":    true,
	"developers": true,
	"support":    true,
	"gaming":     true,
	"moderation": true,
	"study":      true,
}

var systemPrompts = map[string]string{
	"developers": "You are a helpful assistant for software developers. You give concise technical advice.",
	"support":    "You are a polite support assistant. You help users solve problems step-by-step.",
	"gaming":     "You are a friendly gaming assistant. You talk about games and help players.",
	"moderation": "You are a community moderator. You ensure users follow rules and stay respectful.",
	"study":      "You are a study assistant. You help students learn and answer academic questions.",
	"general":    "You are a helpful community assistant. You give friendly, concise answers.",
}

// Fallback replies. The two error fallbacks distinguish "the backend never
// came up" from "this particular generation failed".
const (
	replyEmptyMessage     = "Hi - how can I help?"
	replyEmptyGeneration  = "I'm sorry - I couldn't create a response right now."
	replyModelUnavailable = "Sorry - the text-generation model is not available right now."
	replyGenerationFailed = "Sorry - I couldn't generate a reply at the moment."
)

var (
	mentionStripPattern  = regexp.MustCompile(`(?i)@AI\b`)
	mentionDetectPattern = regexp.MustCompile(`(?i)(^|\s)@AI\b`)
	leadingRolePattern   = regexp.MustCompile(`(?i)^\s*Assistant:\s*`)
	multiSpacePattern    = regexp.MustCompile(`\s{2,}`)
)

// turnMarkers are the role labels the model may hallucinate as the start
// of a new turn; the reply is cut at the first one.
var turnMarkers = []string{"\nUser:", "\nAssistant:", "\nSystem:"}

// ContainsMention reports whether text contains a word-boundary @AI
// mention.
func ContainsMention(text string) bool {
	return mentionDetectPattern.MatchString(text)
}

// StripMention removes @AI mentions from text.
func StripMention(text string) string {
	return strings.TrimSpace(mentionStripPattern.ReplaceAllString(text, ""))
}

// SystemPromptFor returns the system prompt for a community type,
// defaulting to general for unknown values.
func SystemPromptFor(communityType string) string {
	ct := strings.ToLower(strings.TrimSpace(communityType))
	if prompt, ok := systemPrompts[ct]; ok {
		return prompt
	}
	return systemPrompts["general"]
}

// NormalizeCommunityType lower-cases and validates a community type,
// returning "general" for empty or unknown values.
func NormalizeCommunityType(communityType string) string {
	ct := strings.ToLower(strings.TrimSpace(communityType))
	if ValidCommunityTypes[ct] {
		return ct
	}
	return "general"
}

// Responder generates replies through a lazily-initialized generation
// backend.
type Responder struct {
	backend *genai.Backend
}

// NewResponder creates a Responder using the given backend handle.
func NewResponder(backend *genai.Backend) *Responder {
	return &Responder{backend: backend}
}

// WarmUp eagerly initializes the generation backend. Returns true when
// ready.
func (r *Responder) WarmUp() bool {
	return r.backend.WarmUp()
}

// Reply generates a concise reply to message. The message may contain an
// @AI mention, which is stripped before prompt assembly. History is
// trimmed to the most recent MaxHistoryTurns exchanges. Reply never
// returns an error: backend failures resolve to fixed fallback strings.
func (r *Responder) Reply(ctx context.Context, message, communityType string, history []Turn) string {
	userText := StripMention(message)
	if userText == "" {
		return replyEmptyMessage
	}

	prompt := buildPrompt(userText, communityType, history)

	client, err := r.backend.Get()
	if err != nil {
		metrics.GenerationFallbacks.WithLabelValues("unavailable").Inc()
		return replyModelUnavailable
	}

	raw, err := client.Complete(ctx, prompt, generationParams)
	if err != nil {
		metrics.GenerationFallbacks.WithLabelValues("failed").Inc()
		return replyGenerationFailed
	}

	reply := postProcess(raw, prompt)
	if reply == "" {
		return replyEmptyGeneration
	}
	return reply
}

// buildPrompt assembles the full prompt: system role, instruction, two
// few-shot exchanges, trimmed history, then the current turn.
func buildPrompt(userText, communityType string, history []Turn) string {
	parts := []string{
		"System: " + SystemPromptFor(communityType),
		"Instruction: Answer the user directly. Do not repeat the question or list numbered questions.",
		"",
		"User: hello",
		"Assistant: Hi there! How can I help you today?",
		"User: how are you",
		"Assistant: I'm doing great, thank you! What can I help you with?",
		"",
	}

	if len(history) > MaxHistoryTurns*2 {
		history = history[len(history)-MaxHistoryTurns*2:]
	}
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		prefix := "User"
		if strings.HasPrefix(strings.ToLower(turn.Role), "a") {
			prefix = "Assistant"
		}
		parts = append(parts, prefix+": "+content)
	}

	parts = append(parts, "User: "+userText, "Assistant:")
	return strings.Join(parts, "\n")
}

// postProcess turns the raw backend continuation into a clean reply:
// strip the echoed prompt and any leading role label, cut at the first
// hallucinated turn marker, collapse whitespace runs, truncate
// sentence-level repetition loops, and hard-cap the length.
func postProcess(raw, prompt string) string {
	reply := raw
	if strings.HasPrefix(raw, prompt) {
		reply = raw[len(prompt):]
	} else if idx := strings.LastIndex(raw, "Assistant:"); idx != -1 {
		reply = raw[idx+len("Assistant:"):]
	}
	reply = strings.TrimSpace(reply)
	reply = leadingRolePattern.ReplaceAllString(reply, "")

	for _, marker := range turnMarkers {
		if idx := strings.Index(reply, marker); idx != -1 {
			reply = strings.TrimSpace(reply[:idx])
		}
	}

	reply = multiSpacePattern.ReplaceAllString(reply, " ")
	reply = trimRepetition(reply)

	if runes := []rune(reply); len(runes) > maxReplyChars {
		cut := string(runes[:maxReplyChars])
		if idx := strings.LastIndex(cut, "."); idx > 0 {
			cut = cut[:idx]
		}
		reply = cut + "..."
	}

	return strings.TrimSpace(reply)
}

// trimRepetition cuts generated text at the first sentence whose
// lower-cased trimmed form has already appeared, which is how sampling
// loops usually manifest.
func trimRepetition(text string) string {
	sentences := splitSentences(text)
	if len(sentences) < 3 {
		return text
	}

	seen := make(map[string]bool)
	var kept []string
	for _, s := range sentences {
		normed := strings.ToLower(strings.TrimSpace(s))
		if seen[normed] {
			break
		}
		seen[normed] = true
		kept = append(kept, s)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// splitSentences splits text after terminal punctuation followed by
// whitespace. RE2 has no lookbehind, so this is a manual scan.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
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

// TurnsFromContext converts a loosely-typed request context into turns.
// Each item is either a plain string (treated as a user message) or a
// {role, content} object. Malformed items are skipped.
func TurnsFromContext(items []any) []Turn {
	var turns []Turn
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if text := strings.TrimSpace(v); text != "" {
				turns = append(turns, Turn{Role: "user", Content: text})
			}
		case map[string]any:
			role, _ := v["role"].(string)
			content, _ := v["content"].(string)
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			role = strings.ToLower(role)
			if role == "" {
				role = "user"
			}
			turns = append(turns, Turn{Role: role, Content: content})
		}
	}
	return turns
}
