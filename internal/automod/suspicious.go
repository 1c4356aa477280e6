package automod

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`@\w+`)

const (
	// repeatThreshold is how many times the same text must appear in the
	// recency window before it counts as suspicious.
	repeatThreshold = 3

	// densityThreshold is the mention/link count that marks a message as
	// a mass-ping or link blast.
	densityThreshold = 5

	// shortBurstMaxLen bounds the "short repeating burst" check; only
	// messages under this length are considered.
	shortBurstMaxLen = 40
)

// IsSuspicious reports whether text looks like suspicious activity given
// the caller-supplied recency window of prior message texts: the same
// message repeated three or more times, five or more @mentions or links,
// or a short message dominated by a repeated character. Empty text is
// never suspicious. Pure given its inputs; any statefulness (the recency
// window itself) is the caller's.
func IsSuspicious(text string, recent []string) bool {
	return checkSuspicious(text, recent).Blocked
}

func checkSuspicious(text string, recent []string) Verdict {
	if text == "" {
		return Clean()
	}

	trimmed := strings.TrimSpace(text)
	matches := 0
	for _, m := range recent {
		if strings.TrimSpace(m) == trimmed {
			matches++
			if matches >= repeatThreshold {
				return Verdict{Blocked: true, Reason: ReasonSuspicious, Term: "repeated_message"}
			}
		}
	}

	mentions := len(mentionPattern.FindAllStringIndex(text, -1))
	urls := len(urlSchemePattern.FindAllStringIndex(text, -1))
	if mentions >= densityThreshold || urls >= densityThreshold {
		return Verdict{Blocked: true, Reason: ReasonSuspicious, Term: "mention_url_density"}
	}

	if len(text) < shortBurstMaxLen && hasCharFlood(text, 5) {
		return Verdict{Blocked: true, Reason: ReasonSuspicious, Term: "short_burst"}
	}

	return Clean()
}
