package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hanghive/ai-gateway/internal/automod"
	"github.com/hanghive/ai-gateway/internal/chatbot"
	"github.com/hanghive/ai-gateway/internal/eventlog"
	"github.com/hanghive/ai-gateway/internal/metrics"
	"github.com/hanghive/ai-gateway/internal/ratelimit"
	"github.com/hanghive/ai-gateway/internal/recency"
	"github.com/hanghive/ai-gateway/internal/restrict"
)

// maxRequestBody bounds the JSON request body. Oversized message text is
// the spam classifier's concern, not the HTTP layer's, but an unbounded
// body read is not.
const maxRequestBody = 1 << 20

// replyPreviewChars is how much of a generated reply is kept in the event
// metadata.
const replyPreviewChars = 200

// EventLog is the subset of the event store the handlers use.
type EventLog interface {
	Append(ctx context.Context, eventType, senderID, message, reason string, metadata map[string]any) (int64, error)
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
	Get(ctx context.Context, id int64) (*eventlog.Event, error)
}

// Replier generates assistant replies. It never fails; backend errors
// resolve to fallback strings.
type Replier interface {
	Reply(ctx context.Context, message, communityType string, history []chatbot.Turn) string
}

// Summarizer produces word-capped summaries. It never fails; backend
// errors resolve to an extractive summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxWords int) string
}

// CheckPublisher mirrors evaluated messages onto the automod.check
// subject so out-of-band reviewers see the same stream the gateway
// moderates. Implemented by messaging.NATSClient.
type CheckPublisher interface {
	PublishCheck(data []byte) error
}

// Server wires the moderation pipeline, reply generation, and the event
// log behind the HTTP surface. The Redis-backed stores and the check
// publisher are optional: a nil limiter, restriction store, recency
// store, or publisher disables that concern.
type Server struct {
	pipeline     *automod.Pipeline
	replier      Replier
	summarizer   Summarizer
	events       EventLog
	recent       *recency.Store
	limiter      *ratelimit.Limiter
	restrictions *restrict.Store
	checks       CheckPublisher
}

// NewServer creates a Server. pipeline, replier, summarizer, and events
// are required; the remaining dependencies may be nil.
func NewServer(pipeline *automod.Pipeline, replier Replier, summarizer Summarizer, events EventLog, recent *recency.Store, limiter *ratelimit.Limiter, restrictions *restrict.Store, checks CheckPublisher) *Server {
	return &Server{
		pipeline:     pipeline,
		replier:      replier,
		summarizer:   summarizer,
		events:       events,
		recent:       recent,
		limiter:      limiter,
		restrictions: restrictions,
		checks:       checks,
	}
}

// Handler returns the routing mux for the gateway API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("GET /admin/moderation", s.handleEventList)
	mux.HandleFunc("GET /admin/moderation/{id}", s.handleEventGet)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

// chatCode classifies a chat outcome for transport-specific reporting.
type chatCode int

const (
	chatOK chatCode = iota
	chatRestricted
	chatRateLimited
	chatAutomodError
)

// chatOutcome is the transport-independent result of processing one chat
// message, shared by the HTTP handler and the websocket loop.
type chatOutcome struct {
	code       chatCode
	resp       ChatResponse
	retryAfter int
}

// processChat runs one message through restriction and rate limiting, the
// automod pipeline, and reply generation. Every terminal decision (blocked
// verdict or generated reply) appends exactly one event before the
// response goes out; an append failure is surfaced through logs and
// metrics without withholding the decision.
func (s *Server) processChat(ctx context.Context, req ChatRequest) chatOutcome {
	if req.RequireMention && !chatbot.ContainsMention(req.Message) {
		return chatOutcome{code: chatOK, resp: ChatResponse{Handled: false}}
	}

	if s.restrictions != nil && req.SenderID != "" {
		restricted, remaining, reason, err := s.restrictions.IsRestricted(ctx, req.SenderID)
		if err != nil {
			log.Printf("[gateway] restriction check failed for sender=%s: %v (failing open)", req.SenderID, err)
		} else if restricted {
			log.Printf("[gateway] restricted sender=%s reason=%s remaining=%ds", req.SenderID, reason, remaining)
			return chatOutcome{code: chatRestricted, retryAfter: remaining}
		}
	}

	if s.limiter != nil && req.SenderID != "" {
		allowed, err := s.limiter.Allow(ctx, req.SenderID, ratelimit.RuleChat)
		if err == nil && !allowed {
			return chatOutcome{code: chatRateLimited, retryAfter: int(ratelimit.RuleChat.Window.Seconds())}
		}
	}

	communityType := chatbot.NormalizeCommunityType(req.CommunityType)
	turns := chatbot.TurnsFromContext(req.Context)
	window := s.recencyWindow(ctx, req.SenderID, turns)

	s.publishCheck(req.SenderID, req.Message, window)

	verdict, err := s.pipeline.Evaluate(ctx, automod.Message{
		SenderID: req.SenderID,
		Text:     req.Message,
		Recent:   window,
	})
	if err != nil {
		log.Printf("[gateway] automod error: %v", err)
		return chatOutcome{code: chatAutomodError}
	}

	if verdict.Blocked {
		metrics.VerdictsTotal.WithLabelValues(string(verdict.Reason)).Inc()
		s.appendEvent(ctx, eventlog.TypeBlocked, req.SenderID, req.Message, string(verdict.Reason), blockedMetadata(communityType, verdict))
		s.recordOffense(ctx, req.SenderID, string(verdict.Reason))
		return chatOutcome{code: chatOK, resp: ChatResponse{
			Handled: true,
			Blocked: true,
			Reason:  string(verdict.Reason),
		}}
	}

	metrics.VerdictsTotal.WithLabelValues("clean").Inc()

	start := time.Now()
	reply := s.replier.Reply(ctx, req.Message, communityType, turns)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())

	s.appendEvent(ctx, eventlog.TypeReply, req.SenderID, req.Message, "", map[string]any{
		"community_type": communityType,
		"reply_preview":  preview(reply, replyPreviewChars),
	})
	s.pushRecent(ctx, req.SenderID, req.Message)

	return chatOutcome{code: chatOK, resp: ChatResponse{Handled: true, Reply: reply}}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("chat").Inc()

	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", 0)
		return
	}

	outcome := s.processChat(r.Context(), req)
	switch outcome.code {
	case chatRestricted:
		writeError(w, http.StatusForbidden, "sender is temporarily restricted", outcome.retryAfter)
	case chatRateLimited:
		writeError(w, http.StatusTooManyRequests, "rate limited", outcome.retryAfter)
	case chatAutomodError:
		writeError(w, http.StatusInternalServerError, "automod error", 0)
	default:
		writeJSON(w, http.StatusOK, outcome.resp)
	}
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("summarize").Inc()

	var req SummarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Summarization is the most backend-expensive operation, so it gets
	// its own rate limit. Anonymous requests are keyed by remote address.
	if s.limiter != nil {
		identifier := req.SenderID
		if identifier == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			identifier = host
		}
		allowed, err := s.limiter.Allow(r.Context(), identifier, ratelimit.RuleSummarize)
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limited", int(ratelimit.RuleSummarize.Window.Seconds()))
			return
		}
	}

	maxWords := req.MaxLength
	if maxWords <= 0 {
		maxWords = 60
	}

	summary := s.summarizer.Summarize(r.Context(), req.Conversation, maxWords)
	writeJSON(w, http.StatusOK, SummarizeResponse{Summary: summary})
}

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("admin_moderation").Inc()

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.events.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[gateway] list events: %v", err)
		writeError(w, http.StatusInternalServerError, "event log unavailable", 0)
		return
	}
	writeJSON(w, http.StatusOK, EventsResponse{Count: len(events), Events: events})
}

func (s *Server) handleEventGet(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("admin_moderation").Inc()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id", 0)
		return
	}

	event, err := s.events.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "event not found", 0)
		return
	}
	if err != nil {
		log.Printf("[gateway] get event %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "event log unavailable", 0)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "HangHive AI Gateway",
		"status":  "ok",
	})
}

// recencyWindow combines the Redis window for the sender with the user
// turns supplied in the request context. Either source may be empty.
func (s *Server) recencyWindow(ctx context.Context, senderID string, turns []chatbot.Turn) []string {
	var window []string
	if s.recent != nil && senderID != "" {
		stored, err := s.recent.Recent(ctx, senderID)
		if err == nil {
			window = stored
		}
	}
	for _, turn := range turns {
		if turn.Role == "user" {
			window = append(window, turn.Content)
		}
	}
	return window
}

// appendEvent writes the moderation event, surfacing failures through the
// log and the failure counter without affecting the response.
func (s *Server) appendEvent(ctx context.Context, eventType, senderID, message, reason string, metadata map[string]any) {
	if _, err := s.events.Append(ctx, eventType, senderID, message, reason, metadata); err != nil {
		metrics.EventLogFailures.Inc()
		log.Printf("[gateway] event append failed type=%s reason=%s: %v", eventType, reason, err)
	}
}

// publishCheck mirrors the message onto the automod.check subject. Fire
// and forget: publish failures are logged and never delay the verdict.
func (s *Server) publishCheck(senderID, text string, recent []string) {
	if s.checks == nil {
		return
	}
	data, err := json.Marshal(automod.NewCheckRequest(senderID, text, recent))
	if err != nil {
		return
	}
	if err := s.checks.PublishCheck(data); err != nil {
		log.Printf("[gateway] publish automod check: %v", err)
	}
}

func (s *Server) recordOffense(ctx context.Context, senderID, reason string) {
	if s.restrictions == nil || senderID == "" {
		return
	}
	restricted, duration, err := s.restrictions.RecordOffense(ctx, senderID, reason)
	if err != nil {
		log.Printf("[gateway] record offense for sender=%s: %v", senderID, err)
		return
	}
	if restricted {
		log.Printf("[gateway] sender=%s restricted for %s after repeated %s blocks", senderID, duration, reason)
	}
}

func (s *Server) pushRecent(ctx context.Context, senderID, text string) {
	if s.recent == nil || senderID == "" {
		return
	}
	if err := s.recent.Push(ctx, senderID, text); err != nil {
		log.Printf("[gateway] recency push for sender=%s: %v", senderID, err)
	}
}

func blockedMetadata(communityType string, verdict automod.Verdict) map[string]any {
	metadata := map[string]any{
		"community_type": communityType,
		"term":           verdict.Term,
	}
	if verdict.ToxLabel != "" {
		metadata["tox_label"] = verdict.ToxLabel
		metadata["tox_score"] = verdict.ToxScore
	}
	return metadata
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", 0)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, retryAfter int) {
	writeJSON(w, status, ErrorResponse{Error: message, RetryAfterSeconds: retryAfter})
}
