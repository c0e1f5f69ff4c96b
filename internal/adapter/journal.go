package adapter

import (
	"fmt"
	"sync"

	"github.com/markus8006/plcfleet/pkg/models"
)

// Journal keeps a bounded in-memory log ring per device IP. Operators
// read it through the supervisor API to see what a flapping device has
// been doing without grepping service logs.
type Journal struct {
	mu    sync.Mutex
	rings map[string]*models.LogRing
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{rings: make(map[string]*models.LogRing)}
}

// Record appends a formatted entry to the device's ring.
func (j *Journal) Record(ip, level, format string, args ...any) {
	j.ring(ip).Append(level, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the device's ring contents.
func (j *Journal) Entries(ip string) []models.LogEntry {
	return j.ring(ip).Entries()
}

func (j *Journal) ring(ip string) *models.LogRing {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.rings[ip]
	if !ok {
		r = models.NewLogRing(models.DefaultLogRingCap)
		j.rings[ip] = r
	}
	return r
}
