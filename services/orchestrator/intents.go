package orchestrator

import (
	"strings"

	"github.com/samber/lo"
)

type intent int

const (
	intentContinue intent = iota
	intentQuiz
	intentPlan
	intentAffirmative
	intentFinished
	intentFallback
)

var (
	quizKeywords         = []string{"quiz", "assess", "test me"}
	affirmativeKeywords  = []string{"start", "yes", "let's", "lets", "teach", "begin", "review", "explain"}
	finishedKeywords     = []string{"finished", "done", "complete", "i'm done", "i am done"}
	continueKeywords     = []string{"continue", "next", "move on", "proceed"}
	planFallbackKeywords = []string{"learn", "plan", "study", "curriculum"}

	planKeywords = []string{
		"new plan", "add plan", "create plan", "start path", "add path",
		"learning path", "new path", "create path",
		"new laerning path", "add laerning path", "create laerning path",
	}
)

// intentRules is the priority-ordered classifier: the first matching rule
// wins. "continue" outranks everything because it may advance the week
// before the remaining rules are reconsidered.
var intentRules = []struct {
	intent  intent
	matches func(text string, hasPlan bool) bool
}{
	{intentContinue, func(text string, _ bool) bool { return containsAny(text, continueKeywords) }},
	{intentQuiz, func(text string, _ bool) bool { return containsAny(text, quizKeywords) }},
	{intentPlan, func(text string, hasPlan bool) bool {
		return wantsNewPlan(text) || (!hasPlan && containsAny(text, planFallbackKeywords))
	}},
	{intentAffirmative, func(text string, _ bool) bool { return containsAny(text, affirmativeKeywords) }},
	{intentFinished, func(text string, _ bool) bool { return containsAny(text, finishedKeywords) }},
}

// classifyIntent walks the rules in priority order. After an unresolved
// continue turn the caller re-classifies with skipContinue, and
// forceAffirmative slots a synthetic affirmative into its usual priority
// position (a week advance wants a lesson unless a higher rule matches).
func classifyIntent(text string, hasPlan, skipContinue, forceAffirmative bool) intent {
	for _, rule := range intentRules {
		if skipContinue && rule.intent == intentContinue {
			continue
		}
		if forceAffirmative && rule.intent == intentAffirmative {
			return intentAffirmative
		}
		if rule.matches(text, hasPlan) {
			return rule.intent
		}
	}
	return intentFallback
}

func containsAny(text string, keywords []string) bool {
	return lo.SomeBy(keywords, func(kw string) bool {
		return strings.Contains(text, kw)
	})
}

// wantsNewPlan is true for explicit plan requests: a known phrase, or a
// verb+noun combination like "add ... course".
func wantsNewPlan(text string) bool {
	if containsAny(text, planKeywords) {
		return true
	}
	verb := strings.Contains(text, "add") || strings.Contains(text, "create") || strings.Contains(text, "new")
	noun := strings.Contains(text, "path") || strings.Contains(text, "plan") || strings.Contains(text, "course")
	return verb && noun
}
