package roles

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"strict object", `{"a": 1}`, `{"a": 1}`, true},
		{"fenced block", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"preamble and trailer", "Sure, here is the plan:\n{\"a\": 1}\nHope that helps!", `{"a": 1}`, true},
		{"bare array", "Here you go:\n[{\"qid\": \"q1\"}]", `[{"qid": "q1"}]`, true},
		{"no json at all", "I cannot help with that.", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok {
				t.Fatalf("ExtractJSON(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && string(got) != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	if !decodeJSON("```json\n{\"name\": \"fractions\"}\n```", &out) {
		t.Fatal("decodeJSON failed on fenced block")
	}
	if out.Name != "fractions" {
		t.Errorf("decoded name = %q, want %q", out.Name, "fractions")
	}
}

func TestSchemaForIsValidJSON(t *testing.T) {
	schema := schemaFor[struct {
		Message string `json:"message"`
	}]()
	if schema == "{}" || schema == "" {
		t.Errorf("schemaFor returned empty schema %q", schema)
	}
	if _, ok := ExtractJSON(schema); !ok {
		t.Errorf("schemaFor produced invalid JSON: %s", schema)
	}
}
