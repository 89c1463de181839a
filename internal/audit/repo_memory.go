package audit

import (
	"context"
	"sync"
)

// MemoryLog is a simple in-memory append-only log useful for tests.
// It is not intended for production use.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
	// Err, when set, is returned by every append.
	Err error
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (m *MemoryLog) AppendAudit(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
