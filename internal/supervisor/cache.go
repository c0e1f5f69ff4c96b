package supervisor

import (
	"sync"
	"time"

	"github.com/markus8006/plcfleet/pkg/models"
)

// CacheEntry is the most recent decoded value for one register.
type CacheEntry struct {
	Name      string         `json:"name"`
	Value     float64        `json:"value"`
	Timestamp time.Time      `json:"timestamp"`
	Address   int            `json:"address"`
	Quality   models.Quality `json:"quality"`
	Unit      string         `json:"unit,omitempty"`
}

// Cache holds the latest value per register for one device, keyed by
// register ID. Names are display labels and need not be unique within
// a device. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]CacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[int64]CacheEntry)}
}

// Put stores the latest value for a register.
func (c *Cache) Put(registerID int64, e CacheEntry) {
	c.mu.Lock()
	c.entries[registerID] = e
	c.mu.Unlock()
}

// Get returns the entry for a register.
func (c *Cache) Get(registerID int64) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[registerID]
	return e, ok
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() map[int64]CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
