package audit

import "sync"

// MemorySink keeps entries in memory
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemorySink) Close() error {
	return nil
}

// Entries returns a copy of the written entries
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
