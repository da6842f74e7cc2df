package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"vivaha/internal/audit"
)

// InMemoryStore is the append-only audit sink used by unit tests and
// single-process deployments. Entries are copied on read so callers cannot
// mutate the log.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *InMemoryStore) Query(_ context.Context, filters audit.Filters) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Entry
	for _, entry := range s.entries {
		if matches(entry, filters) {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func matches(entry audit.Entry, filters audit.Filters) bool {
	if filters.ActorRole != "" && entry.ActorRole != filters.ActorRole {
		return false
	}
	if filters.ActionContains != "" && !strings.Contains(string(entry.Action), filters.ActionContains) {
		return false
	}
	if filters.Search != "" {
		needle := strings.ToLower(filters.Search)
		haystack := strings.ToLower(strings.Join([]string{
			entry.ActorName,
			string(entry.Action),
			entry.ResourceID,
			detailsText(entry.Details),
		}, " "))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func detailsText(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Len reports the number of recorded entries. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
