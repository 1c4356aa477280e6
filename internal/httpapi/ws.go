package httpapi

import (
	"encoding/json"
	"log"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/hanghive/ai-gateway/internal/chatbot"
	"github.com/hanghive/ai-gateway/internal/metrics"
	"github.com/hanghive/ai-gateway/internal/ratelimit"
)

// wsInbound is one client frame on the websocket chat. The community type
// may be set on any frame; it defaults to "general".
type wsInbound struct {
	Message       string `json:"message"`
	CommunityType string `json:"community_type,omitempty"`
}

// wsOutbound is one server frame: the session id on the greeting frame,
// then a ChatResponse per inbound message.
type wsOutbound struct {
	Type      string `json:"type"` // "session" or "reply"
	SessionID string `json:"session_id,omitempty"`
	ChatResponse
}

// handleWS runs an interactive chat session over a websocket. Each
// connection gets a fresh session id and its own rolling history; every
// inbound frame goes through the same moderation-then-generation flow as
// the POST /chat endpoint.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("ws").Inc()

	if s.limiter != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		allowed, err := s.limiter.Allow(r.Context(), host, ratelimit.RuleConnect)
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "rate limited", int(ratelimit.RuleConnect.Window.Seconds()))
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[ws] upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	history := chatbot.NewHistory()

	metrics.WSSessions.Inc()
	defer metrics.WSSessions.Dec()
	log.Printf("[ws] session=%s connected from %s", sessionID, r.RemoteAddr)

	writeFrame(conn, wsOutbound{Type: "session", SessionID: sessionID})

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			log.Printf("[ws] session=%s closed: %v", sessionID, err)
			return
		}
		if op != ws.OpText {
			continue
		}

		var inbound wsInbound
		if err := json.Unmarshal(data, &inbound); err != nil || inbound.Message == "" {
			writeFrame(conn, wsOutbound{Type: "reply", ChatResponse: ChatResponse{Handled: false}})
			continue
		}

		outcome := s.processChat(r.Context(), ChatRequest{
			SenderID:      sessionID,
			Message:       inbound.Message,
			CommunityType: inbound.CommunityType,
			Context:       turnsToContext(history.Turns()),
		})

		resp := outcome.resp
		switch outcome.code {
		case chatRestricted:
			resp = ChatResponse{Handled: true, Blocked: true, Reason: "restricted"}
		case chatRateLimited:
			resp = ChatResponse{Handled: true, Blocked: true, Reason: "rate_limited"}
		case chatAutomodError:
			resp = ChatResponse{Handled: false}
		}

		if resp.Handled && !resp.Blocked && resp.Reply != "" {
			history.Add("user", inbound.Message)
			history.Add("assistant", resp.Reply)
		}

		if !writeFrame(conn, wsOutbound{Type: "reply", ChatResponse: resp}) {
			return
		}
	}
}

func writeFrame(conn net.Conn, frame wsOutbound) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[ws] marshal frame: %v", err)
		return false
	}
	if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
		log.Printf("[ws] write frame: %v", err)
		return false
	}
	return true
}

// turnsToContext widens history turns back into the loosely-typed context
// shape processChat expects.
func turnsToContext(turns []chatbot.Turn) []any {
	items := make([]any, 0, len(turns))
	for _, turn := range turns {
		items = append(items, map[string]any{"role": turn.Role, "content": turn.Content})
	}
	return items
}
