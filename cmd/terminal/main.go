package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hanghive/ai-gateway/internal/automod"
	"github.com/hanghive/ai-gateway/internal/chatbot"
	"github.com/hanghive/ai-gateway/internal/eventlog"
	"github.com/hanghive/ai-gateway/internal/genai"
	"github.com/hanghive/ai-gateway/internal/toxicity"
)

const welcome = `
==================================================
  HangHive AI - Community Assistant
  Type messages and press Enter.
  Type "exit" to quit.
==================================================
`

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// The terminal driver runs the same automod-then-generate flow as the
// gateway against stdin, with a rolling local history. Event logging is
// best-effort: without DATABASE_URL the session simply isn't audited.
func main() {
	log.SetFlags(0)

	genaiURL := env("GENAI_URL", "http://localhost:8080")
	genaiModel := env("GENAI_MODEL", "gpt2")
	toxicityURL := env("TOXICITY_URL", "http://localhost:8081")
	toxicityModel := env("TOXICITY_MODEL", "unitary/toxic-bert")

	fmt.Print(welcome)

	reader := bufio.NewScanner(os.Stdin)
	communityType := chooseCommunityType(reader)
	fmt.Printf("  Using community type: %s\n\n", communityType)

	// --- optional event log ---
	var events *eventlog.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err == nil {
			store := eventlog.NewStore(db)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = store.Init(ctx)
			cancel()
			if err == nil {
				events = store
				defer db.Close()
			} else {
				db.Close()
			}
		}
		if events == nil {
			fmt.Println("  (event log unavailable, session will not be audited)")
		}
	}

	// --- backends ---
	genBackend := genai.NewBackend(genai.Dialer(genaiURL, genaiModel))
	toxDial := genai.Dialer(toxicityURL, toxicityModel)
	detector := toxicity.NewDetector(func() (toxicity.Classifier, error) {
		return toxDial()
	})
	responder := chatbot.NewResponder(genBackend)
	pipeline := automod.NewPipeline(detector)

	fmt.Print("  Loading models ... ")
	chatOK := responder.WarmUp()
	modOK := detector.WarmUp()
	switch {
	case chatOK && modOK:
		fmt.Print("ready\n\n")
	case chatOK:
		fmt.Print("chat ready (moderation model unavailable)\n\n")
	default:
		fmt.Print("models unavailable, replies may be slow or fallback-only\n\n")
	}

	history := chatbot.NewHistory()
	ctx := context.Background()

	for {
		fmt.Print("You: ")
		if !reader.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		if low := strings.ToLower(input); low == "exit" || low == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		// 1) Spam
		if automod.IsSpam(input) {
			fmt.Print("Bot: Spam detected - message blocked.\n\n")
			logEvent(ctx, events, input, "spam", communityType, nil)
			continue
		}

		// 2) Suspicious activity
		if automod.IsSuspicious(input, history.UserTexts()) {
			fmt.Print("Bot: Suspicious activity detected - message blocked.\n\n")
			logEvent(ctx, events, input, "suspicious", communityType, nil)
			continue
		}

		// 3) Unsafe / toxic
		if pipeline.IsUnsafe(ctx, input) {
			fmt.Print("Bot: Unsafe content detected - please be respectful.\n\n")
			logEvent(ctx, events, input, "unsafe", communityType, nil)
			continue
		}
		score := detector.Check(ctx, input)
		if toxicity.IsModelToxic(score.Label, score.Confidence) || toxicity.HasBlacklistedToken(input) {
			fmt.Print("Bot: Toxic content detected - please be respectful.\n\n")
			logEvent(ctx, events, input, "toxic", communityType, map[string]any{
				"tox_label": score.Label,
				"tox_score": score.Confidence,
			})
			continue
		}

		// 4) Generate reply
		reply := responder.Reply(ctx, input, communityType, history.Turns())

		history.Add("user", input)
		history.Add("assistant", reply)

		fmt.Printf("Bot: %s\n\n", reply)
	}
}

// chooseCommunityType prompts for a community type, defaulting to
// "general" on empty or invalid input.
func chooseCommunityType(reader *bufio.Scanner) string {
	options := make([]string, 0, len(chatbot.ValidCommunityTypes))
	for ct := range chatbot.ValidCommunityTypes {
		options = append(options, ct)
	}
	sort.Strings(options)

	fmt.Printf("  Available community types: %s\n", strings.Join(options, ", "))
	fmt.Print("  Select community type (Enter = general): ")
	if !reader.Scan() {
		return "general"
	}
	choice := strings.ToLower(strings.TrimSpace(reader.Text()))
	if choice == "" {
		return "general"
	}
	if !chatbot.ValidCommunityTypes[choice] {
		fmt.Printf("  %q is not a valid type, defaulting to \"general\".\n", choice)
		return "general"
	}
	return choice
}

func logEvent(ctx context.Context, events *eventlog.Store, message, reason, communityType string, extra map[string]any) {
	if events == nil {
		return
	}
	metadata := map[string]any{"community_type": communityType, "source": "terminal"}
	for k, v := range extra {
		metadata[k] = v
	}
	if _, err := events.Append(ctx, eventlog.TypeBlocked, "", message, reason, metadata); err != nil {
		log.Printf("[terminal] event append failed: %v", err)
	}
}
