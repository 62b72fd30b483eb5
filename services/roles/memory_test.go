package roles

import "testing"

func TestMemoryBankAddAndQuery(t *testing.T) {
	m := NewMemoryBank(newTestStore(t), "u1")
	m.Add("User struggles with long division", map[string]any{"kind": "struggle"})
	m.Add("User prefers worked examples", map[string]any{"kind": "preference"})

	all := m.Query("")
	if len(all) != 2 {
		t.Fatalf("got %d memories, want 2", len(all))
	}

	hits := m.Query("DIVISION")
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Metadata["kind"] != "struggle" {
		t.Errorf("metadata = %v", hits[0].Metadata)
	}
	if hits[0].CreatedAt == "" {
		t.Error("created_at not stamped")
	}
}

func TestMemoryBankIgnoresBlankContent(t *testing.T) {
	m := NewMemoryBank(newTestStore(t), "u1")
	m.Add("   ", nil)
	if got := len(m.Query("")); got != 0 {
		t.Errorf("got %d memories, want 0", got)
	}
}

func TestExtractInsight(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		saved bool
		kind  string
	}{
		{"struggle", "I keep struggling with fractions", true, "struggle"},
		{"preference", "I prefer video lessons", true, "preference"},
		{"completion", "I finished the whole week", true, "completion"},
		{"plain chat", "what is a fraction?", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryBank(newTestStore(t), "u1")
			if got := m.ExtractInsight(tt.text); got != tt.saved {
				t.Fatalf("ExtractInsight(%q) = %v, want %v", tt.text, got, tt.saved)
			}
			if !tt.saved {
				return
			}
			items := m.Query("")
			if len(items) != 1 {
				t.Fatalf("got %d memories, want 1", len(items))
			}
			if items[0].Metadata["kind"] != tt.kind {
				t.Errorf("kind = %v, want %q", items[0].Metadata["kind"], tt.kind)
			}
		})
	}
}
