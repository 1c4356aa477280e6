package automod

import (
	"regexp"
	"strings"
)

// Compiled patterns for the spam checks. Compiled once at package init and
// reused for every call, so they are safe for concurrent use.
var (
	// spamPhrasePatterns are the obvious spammy phrases.
	spamPhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)buy now`),
		regexp.MustCompile(`(?i)click here`),
		regexp.MustCompile(`(?i)free money`),
	}

	// urlSchemePattern counts link density by scheme prefix only; bare
	// domains are left alone to avoid flagging version strings.
	urlSchemePattern = regexp.MustCompile(`(?i)https?://`)
)

// maxMessageChars is the length above which a message is treated as a dump.
const maxMessageChars = 8000

// spamCheck pairs a detection function with the name reported for audit.
type spamCheck struct {
	name  string
	match func(string) bool
}

// spamChecks is the ordered list applied by checkSpam. The first match wins.
var spamChecks = []spamCheck{
	{name: "phrase", match: matchesSpamPhrase},
	{name: "url_density", match: func(text string) bool {
		return len(urlSchemePattern.FindAllStringIndex(text, -1)) > 2
	}},
	{name: "char_flood", match: func(text string) bool {
		return hasCharFlood(text, 7)
	}},
	{name: "repeated_lines", match: hasRepeatedLines},
	{name: "length", match: func(text string) bool {
		return len(text) > maxMessageChars
	}},
}

// IsSpam reports whether text trips any spam heuristic: a spammy phrase,
// more than two links, a character repeated seven or more times in a row,
// a line repeated three or more times, or excessive length. Empty text is
// never spam. Pure and deterministic.
func IsSpam(text string) bool {
	return checkSpam(text).Blocked
}

// checkSpam runs the spam checks in order and reports which one matched.
func checkSpam(text string) Verdict {
	if text == "" {
		return Clean()
	}
	for _, sc := range spamChecks {
		if sc.match(text) {
			return Verdict{Blocked: true, Reason: ReasonSpam, Term: sc.name}
		}
	}
	return Clean()
}

func matchesSpamPhrase(text string) bool {
	for _, p := range spamPhrasePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// hasCharFlood returns true if text contains threshold or more consecutive
// identical characters. Go's regexp package (RE2) does not support
// backreferences, so this is a linear scan.
func hasCharFlood(text string, threshold int) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasRepeatedLines returns true if, after trimming, some non-blank line
// appears three or more times.
func hasRepeatedLines(text string) bool {
	const threshold = 3

	counts := make(map[string]int)
	for _, line := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r'
	}) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		counts[line]++
		if counts[line] >= threshold {
			return true
		}
	}
	return false
}
