package generate

import (
	"context"
	"encoding/json"
)

// ContentGenerator is the single capability the roles depend on: turn a
// prompt plus optional system instruction into plain text (possibly
// JSON-encoded).
type ContentGenerator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// Static returns a deterministic echo payload. It stands in for a real
// backend when no API key is configured, keeping the app usable offline.
type Static struct{}

func (Static) Generate(_ context.Context, prompt, _ string) (string, error) {
	echo := prompt
	if len(echo) > 400 {
		echo = echo[:400]
	}
	out, err := json.Marshal(map[string]string{
		"summary":     "LLM disabled - set OPENAI_API_KEY or ANTHROPIC_API_KEY",
		"prompt_echo": echo,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
