package store

import (
	"fmt"
	"log"
)

// Session is a thin persistence facade over a Store for one user's durable
// record of events and key-value state. A session always exists after first
// access: construction creates the record with an initial system event.
type Session struct {
	store     Store
	namespace string
}

func NewSession(s Store, userID string) *Session {
	sess := &Session{
		store:     s,
		namespace: fmt.Sprintf("session:%s", userID),
	}
	sess.ensureExists()
	return sess
}

func (s *Session) ID() string {
	return s.namespace
}

func (s *Session) ensureExists() {
	ns, err := s.store.Namespace(s.namespace)
	if err != nil {
		log.Printf("[ERROR] Failed to check session %s: %v", s.namespace, err)
		return
	}
	if len(ns) == 0 {
		s.AddEvent("system", "Session started", "system")
	}
}

// AddEvent stamps and appends an event to the session history.
func (s *Session) AddEvent(role string, content any, eventType string) {
	event := map[string]any{
		"role":    role,
		"type":    eventType,
		"content": content,
	}
	if err := s.store.AppendEvent(s.namespace, event); err != nil {
		log.Printf("[ERROR] Failed to append event to %s: %v", s.namespace, err)
	}
}

// Events returns the full event history, oldest first.
func (s *Session) Events() []map[string]any {
	ns, err := s.store.Namespace(s.namespace)
	if err != nil {
		log.Printf("[ERROR] Failed to load events for %s: %v", s.namespace, err)
		return nil
	}
	raw, _ := ns["events"].([]any)
	events := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			events = append(events, m)
		}
	}
	return events
}

func (s *Session) LastEvent() map[string]any {
	events := s.Events()
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

// State returns the session's state sub-map, never nil.
func (s *Session) State() map[string]any {
	ns, err := s.store.Namespace(s.namespace)
	if err != nil {
		log.Printf("[ERROR] Failed to load state for %s: %v", s.namespace, err)
		return map[string]any{}
	}
	state, _ := ns["state"].(map[string]any)
	if state == nil {
		state = map[string]any{}
	}
	return state
}

// UpdateState writes a single key into the state sub-map. Unknown keys
// written by other components are preserved.
func (s *Session) UpdateState(key string, value any) {
	state := s.State()
	state[key] = value
	if err := s.store.Put(s.namespace, "state", state); err != nil {
		log.Printf("[ERROR] Failed to update state %s/%s: %v", s.namespace, key, err)
	}
}

// Compact truncates the event log to the most recent keepLast events.
func (s *Session) Compact(keepLast int) {
	if _, err := s.store.CompactSession(s.namespace, keepLast); err != nil {
		log.Printf("[ERROR] Failed to compact session %s: %v", s.namespace, err)
	}
}
