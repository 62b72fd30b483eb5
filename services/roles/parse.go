package roles

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// ExtractJSON pulls a JSON document out of generated text. It tries a strict
// parse first, then strips a fenced code block, then falls back to the first
// '{' ... last '}' span. Returns false when no parseable document is found.
func ExtractJSON(text string) ([]byte, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), true
	}

	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 2 {
			inner := strings.Join(lines[1:], "\n")
			if idx := strings.LastIndex(inner, "```"); idx >= 0 {
				inner = inner[:idx]
			}
			inner = strings.TrimSpace(inner)
			if json.Valid([]byte(inner)) {
				return []byte(inner), true
			}
			trimmed = inner
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true
		}
	}

	// Question sets sometimes arrive as a bare array.
	start = strings.Index(trimmed, "[")
	end = strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true
		}
	}

	return nil, false
}

// decodeJSON extracts and unmarshals in one step.
func decodeJSON(text string, v any) bool {
	raw, ok := ExtractJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// schemaFor reflects a result struct into a JSON schema string embedded in
// prompts so generators know the exact shape to return.
func schemaFor[T any]() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
