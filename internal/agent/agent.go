// Package agent connects characters to the language models or players that
// drive them.
package agent

import (
	"context"
	"sync"
)

// Agent produces a response to a prompt on behalf of a character. The
// returned text is raw model output; callers parse it into actions.
type Agent interface {
	// Name identifies the agent in logs and events.
	Name() string
	// Invoke sends a prompt and returns the response text.
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Memory is a bounded transcript of what a character has seen and said,
// replayed into its prompts.
type Memory struct {
	mu      sync.Mutex
	entries []string
	limit   int
}

// NewMemory creates a transcript keeping the most recent limit entries. A
// non-positive limit keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Add appends an entry, evicting the oldest past the limit.
func (m *Memory) Add(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
}

// Entries returns a copy of the transcript, oldest first.
func (m *Memory) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of held entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
