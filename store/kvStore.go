package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store is a durable namespace -> key -> value map with session event
// helpers. Implementations serialize their load-mutate-save cycle within the
// process; cross-process writers are last-writer-wins.
type Store interface {
	Put(namespace, key string, value any) error
	Get(namespace, key string) (any, bool, error)
	Namespace(namespace string) (map[string]any, error)
	QueryPrefix(namespace, prefix string) (map[string]any, error)
	AppendEvent(namespace string, event map[string]any) error
	CompactSession(namespace string, keepLast int) (map[string]any, error)
}

// FileStore keeps the whole store as a single JSON document on disk:
// { "<namespace>": { "<key>": <value> } }. Every operation reloads the file,
// mutates the snapshot and writes it back under a process-wide lock.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() map[string]map[string]any {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]map[string]any{}
	}
	var data map[string]map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		// Corrupted file: start fresh rather than fail.
		log.Printf("[ERROR] Store file %s is corrupted, starting empty: %v", s.path, err)
		return map[string]map[string]any{}
	}
	if data == nil {
		data = map[string]map[string]any{}
	}
	return data
}

// save writes the snapshot to a temp file and renames it into place, so a
// crash mid-write never leaves a truncated store behind.
func (s *FileStore) save(data map[string]map[string]any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (s *FileStore) Put(namespace, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	if data[namespace] == nil {
		data[namespace] = map[string]any{}
	}
	data[namespace][key] = value
	return s.save(data)
}

func (s *FileStore) Get(namespace, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.load()[namespace]
	if !ok {
		return nil, false, nil
	}
	if key == "" {
		return ns, true, nil
	}
	v, ok := ns[key]
	return v, ok, nil
}

func (s *FileStore) Namespace(namespace string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.load()[namespace]
	if ns == nil {
		ns = map[string]any{}
	}
	return ns, nil
}

func (s *FileStore) QueryPrefix(namespace, prefix string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]any{}
	for k, v := range s.load()[namespace] {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *FileStore) AppendEvent(namespace string, event map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	ns := data[namespace]
	if ns == nil {
		ns = map[string]any{}
		data[namespace] = ns
	}
	appendEvent(ns, namespace, event)
	return s.save(data)
}

func (s *FileStore) CompactSession(namespace string, keepLast int) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	ns := data[namespace]
	if ns == nil {
		return map[string]any{}, nil
	}
	compactSession(ns, keepLast)
	if err := s.save(data); err != nil {
		return nil, err
	}
	return ns, nil
}

// ---- shared session record helpers ----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// appendEvent mutates a session record in place: initializes the record if
// missing, stamps event_id/timestamp defaults, appends the event and updates
// state.last_event_ts.
func appendEvent(record map[string]any, namespace string, event map[string]any) {
	if len(record) == 0 {
		record["session_id"] = namespace
		record["created_at"] = nowISO()
		record["events"] = []any{}
		record["state"] = map[string]any{}
	}

	e := make(map[string]any, len(event)+2)
	for k, v := range event {
		e[k] = v
	}
	if _, ok := e["event_id"]; !ok {
		e["event_id"] = fmt.Sprintf("evt-%d", time.Now().UnixMilli())
	}
	if _, ok := e["timestamp"]; !ok {
		e["timestamp"] = nowISO()
	}

	events, _ := record["events"].([]any)
	record["events"] = append(events, e)

	state, _ := record["state"].(map[string]any)
	if state == nil {
		state = map[string]any{}
		record["state"] = state
	}
	state["last_event_ts"] = e["timestamp"]
}

// compactSession truncates the event log to the last keepLast events and
// summarizes the tail of the conversation into state.short_summary.
func compactSession(record map[string]any, keepLast int) {
	events, _ := record["events"].([]any)
	if len(events) == 0 {
		return
	}

	var kept []any
	if keepLast > 0 {
		start := len(events) - keepLast
		if start < 0 {
			start = 0
		}
		kept = events[start:]
	} else {
		kept = []any{}
	}

	var userTexts []string
	for _, raw := range kept {
		e, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if role, _ := e["role"].(string); role != "user" {
			continue
		}
		if text := eventText(e["content"]); text != "" {
			userTexts = append(userTexts, text)
		}
	}
	if len(userTexts) > 3 {
		userTexts = userTexts[len(userTexts)-3:]
	}

	record["events"] = kept
	state, _ := record["state"].(map[string]any)
	if state == nil {
		state = map[string]any{}
		record["state"] = state
	}
	state["short_summary"] = strings.Join(userTexts, " | ")
	state["compacted_at"] = nowISO()
}

func eventText(content any) string {
	switch c := content.(type) {
	case map[string]any:
		text, _ := c["text"].(string)
		return strings.TrimSpace(text)
	case string:
		return strings.TrimSpace(c)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", c))
	}
}
