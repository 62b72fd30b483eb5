package roles

import (
	"log"
	"strings"
	"time"

	"learncoach/models"
	"learncoach/store"
)

// maxMemories bounds the bank so a long-lived user record cannot grow
// without limit.
const maxMemories = 1000

// MemoryBank stores durable facts about a learner (struggles, preferences,
// completions) extracted from conversation turns.
type MemoryBank struct {
	userID string
	store  store.Store
}

func NewMemoryBank(s store.Store, userID string) *MemoryBank {
	return &MemoryBank{userID: userID, store: s}
}

func (m *MemoryBank) namespace() string {
	return "memory:" + m.userID
}

// Add appends a memory entry, evicting the oldest beyond the cap.
func (m *MemoryBank) Add(content string, metadata map[string]any) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	items := m.rawItems()
	items = append(items, map[string]any{
		"content":    content,
		"metadata":   metadata,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if len(items) > maxMemories {
		items = items[len(items)-maxMemories:]
	}
	if err := m.store.Put(m.namespace(), "items", items); err != nil {
		log.Printf("[ERROR] MemoryBank write failed: %v", err)
	}
}

// Query returns memories whose content contains the query, case-insensitive.
// An empty query returns everything.
func (m *MemoryBank) Query(query string) []models.MemoryItem {
	query = strings.ToLower(strings.TrimSpace(query))
	var results []models.MemoryItem
	for _, raw := range m.rawItems() {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := models.MemoryItem{}
		if v, ok := entry["content"].(string); ok {
			item.Content = v
		}
		if v, ok := entry["metadata"].(map[string]any); ok {
			item.Metadata = v
		}
		if v, ok := entry["created_at"].(string); ok {
			item.CreatedAt = v
		}
		if query == "" || strings.Contains(strings.ToLower(item.Content), query) {
			results = append(results, item)
		}
	}
	return results
}

// ExtractInsight scans a user message for long-term signals worth
// remembering. Returns false when the message carries none.
func (m *MemoryBank) ExtractInsight(text string) bool {
	lower := strings.ToLower(text)
	kind := ""
	switch {
	case strings.Contains(lower, "struggl") || strings.Contains(lower, "confus") ||
		strings.Contains(lower, "don't understand") || strings.Contains(lower, "do not understand"):
		kind = "struggle"
	case strings.Contains(lower, "prefer") || strings.Contains(lower, "i like") ||
		strings.Contains(lower, "i love"):
		kind = "preference"
	case strings.Contains(lower, "finished") || strings.Contains(lower, "completed") ||
		strings.Contains(lower, "mastered"):
		kind = "completion"
	}
	if kind == "" {
		return false
	}
	m.Add(text, map[string]any{"kind": kind})
	return true
}

func (m *MemoryBank) rawItems() []any {
	raw, found, err := m.store.Get(m.namespace(), "items")
	if err != nil {
		log.Printf("[ERROR] MemoryBank read failed: %v", err)
		return nil
	}
	if !found {
		return nil
	}
	items, _ := raw.([]any)
	return items
}
