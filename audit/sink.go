// api/audit/sink.go
package audit

import "sync"

// Sink is a bounded in-memory audit log. Once full, the oldest entry is
// evicted for each append. Readers always get a snapshot, never the live
// backing slice.
type Sink struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewSink creates a sink retaining at most size entries.
func NewSink(size int) *Sink {
	if size <= 0 {
		size = 1
	}
	return &Sink{entries: make([]Entry, size)}
}

// Append adds an entry, evicting the oldest if the buffer is full.
func (s *Sink) Append(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = entry
	s.next++
	if s.next == len(s.entries) {
		s.next = 0
		s.full = true
	}
}

// Len returns the number of retained entries.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.entries)
	}
	return s.next
}

// Snapshot returns up to limit entries, newest first. limit <= 0 returns all
// retained entries.
func (s *Sink) Snapshot(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.next
	if s.full {
		count = len(s.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out
}
