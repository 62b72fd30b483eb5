package generate

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

const (
	maxAttempts = 3
	baseDelay   = 500 * time.Millisecond
)

// Retrying wraps a backend with a bounded retry policy: up to 3 attempts
// with doubling backoff on rate-limit-class errors. On exhaustion it returns
// a deterministic fallback payload instead of an error, so generation
// failures never propagate as hard failures.
type Retrying struct {
	inner ContentGenerator
	sleep func(time.Duration)
}

func NewRetrying(inner ContentGenerator) *Retrying {
	return &Retrying{inner: inner, sleep: time.Sleep}
}

func (r *Retrying) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	delay := baseDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := r.inner.Generate(ctx, prompt, systemInstruction)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRateLimited(err) || attempt == maxAttempts {
			break
		}
		log.Printf("[INFO] Generation rate limited, retrying in %s (attempt %d/%d)", delay, attempt, maxAttempts)
		r.sleep(delay)
		delay *= 2
	}

	log.Printf("[ERROR] Generation failed after retries: %v", lastErr)
	fallback, _ := json.Marshal(map[string]string{
		"summary": "generation failed",
		"error":   lastErr.Error(),
	})
	return string(fallback), nil
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "overloaded")
}
