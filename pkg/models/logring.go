package models

import (
	"sync"
	"time"
)

// DefaultLogRingCap bounds the per-device log ring.
const DefaultLogRingCap = 200

// LogEntry is one line in a device's log ring.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level" example:"info"`
	Message   string    `json:"message"`
}

// LogRing is a bounded per-device log buffer. Appending past capacity
// drops the oldest entry. Consecutive duplicate messages are collapsed.
// Safe for concurrent use.
type LogRing struct {
	mu      sync.Mutex
	cap     int
	entries []LogEntry
}

// NewLogRing creates a ring with the given capacity (DefaultLogRingCap
// when capacity <= 0).
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = DefaultLogRingCap
	}
	return &LogRing{cap: capacity}
}

// Append adds an entry, skipping it when the message equals the most
// recent one.
func (r *LogRing) Append(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.entries); n > 0 && r.entries[n-1].Message == message {
		return
	}
	r.entries = append(r.entries, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	})
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *LogRing) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of buffered entries.
func (r *LogRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
