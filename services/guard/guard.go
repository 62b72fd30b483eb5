package guard

import (
	"regexp"
)

const (
	toxicityRefusal = "I cannot respond to that input as it violates safety guidelines (toxicity)."
	piiRefusal      = "Please don't share personal information (email, phone, SSN)."
)

// SecurityGuard pre-filters user text before it reaches the orchestrator.
type SecurityGuard struct {
	blockPII      bool
	piiPatterns   []*regexp.Regexp
	toxicPatterns []*regexp.Regexp
}

func New(extraToxicKeywords ...string) *SecurityGuard {
	pii := []string{
		`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		`\b\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{4}\b`,
		`\b\d{3}-\d{2}-\d{4}\b`,
	}
	toxic := append([]string{"hate", "kill", "stupid", "idiot", "destroy"}, extraToxicKeywords...)

	g := &SecurityGuard{blockPII: true}
	for _, p := range pii {
		g.piiPatterns = append(g.piiPatterns, regexp.MustCompile(`(?i)`+p))
	}
	for _, w := range toxic {
		g.toxicPatterns = append(g.toxicPatterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return g
}

// CheckInput returns whether the text is safe plus a refusal message when it
// is not. Empty input is safe.
func (g *SecurityGuard) CheckInput(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	for _, p := range g.toxicPatterns {
		if p.MatchString(text) {
			return false, toxicityRefusal
		}
	}
	for _, p := range g.piiPatterns {
		if p.MatchString(text) {
			if g.blockPII {
				return false, piiRefusal
			}
			return true, "Warning: your message contains personal information; avoid sharing it."
		}
	}
	return true, ""
}

// CheckOutput blocks generated text that leaks PII.
func (g *SecurityGuard) CheckOutput(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	for _, p := range g.piiPatterns {
		if p.MatchString(text) {
			return false, "[System] Output blocked: detected personal information."
		}
	}
	return true, ""
}

// MaskPII redacts PII matches in place of blocking.
func (g *SecurityGuard) MaskPII(text string) string {
	out := text
	for _, p := range g.piiPatterns {
		out = p.ReplaceAllString(out, "[REDACTED]")
	}
	return out
}
