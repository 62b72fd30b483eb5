package orchestrator

import (
	"strings"
	"unicode"
)

// topicLeadIns are conversational prefixes stripped before turning a request
// into a topic title. The list keeps its historical order, shadowing
// included: the first match wins even when a longer variant appears later.
// List includes common typos seen in real traffic.
var topicLeadIns = []string{
	"i want to learn about",
	"i want to learn",
	"i want to study",
	"teach me about",
	"teach me",
	"learn about",
	"learn",
	"study",
	"please teach me",
	"please teach",
	"start lesson on",
	"start lesson",
	"create a learning path for",
	"create learning path for",
	"create a plan for",
	"create plan for",
	"add a learning path for",
	"add learning path for",
	"add a plan for",
	"add plan for",
	"make a plan for",
	"add a new learning path",
	"create a new learning path",
	"new learning path",
	"new plan",
	"add a new laerning path",
	"create a new laerning path",
	"new laerning path",
	"what is",
	"what are",
	"how does",
	"quiz me on",
	"quiz on",
	"assess me on",
	"test me on",
	"give me a quiz on",
	"how do",
	"tell me about",
	"explain",
}

// sanitizeTopic turns a raw request into a human-friendly topic title:
// "i want to learn fractions" -> "Fractions", "teach me sql" -> "SQL".
// Returns "" when nothing topic-like remains so callers can detect a
// missing topic.
func sanitizeTopic(raw string) string {
	if raw == "" {
		return "General Topic"
	}
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, phrase := range topicLeadIns {
		if strings.HasPrefix(s, phrase) {
			s = strings.TrimSpace(s[len(phrase):])
			break
		}
	}
	s = strings.Trim(s, " -:,.!?\"'")
	if s == "" {
		return ""
	}

	words := strings.Fields(s)
	for i, w := range words {
		if isAlpha(w) && len(w) <= 3 {
			// short words are treated as acronyms: sql -> SQL
			words[i] = strings.ToUpper(w)
		} else {
			words[i] = capitalize(w)
		}
	}
	return strings.Join(words, " ")
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
