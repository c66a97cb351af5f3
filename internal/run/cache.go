package run

import "github.com/collatzlab/collatz-tester-go/internal/fingerprint"

// Cache remembers every fingerprint this run has dealt with, so a number
// drawn twice in one session is rejected without a store round trip. One
// cache per run; it is never persisted and starts empty even when the
// store has millions of rows.
type Cache struct {
	seen map[fingerprint.Fingerprint]struct{}
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{seen: make(map[fingerprint.Fingerprint]struct{})}
}

// Seen reports whether fp was already recorded this run.
func (c *Cache) Seen(fp fingerprint.Fingerprint) bool {
	_, ok := c.seen[fp]
	return ok
}

// Record marks fp as handled. Recording the same fingerprint twice is
// harmless.
func (c *Cache) Record(fp fingerprint.Fingerprint) {
	c.seen[fp] = struct{}{}
}

// Len returns how many distinct fingerprints were recorded.
func (c *Cache) Len() int { return len(c.seen) }
