package reminder

import (
	"strconv"
	"sync"
	"time"
)

type EventKind string

const (
	KindPreReminder EventKind = "pre-reminder"
	KindDueNow      EventKind = "due-now"
)

// Key identifies one notification episode: a task and the kind of event.
type Key struct {
	TaskID int64
	Kind   EventKind
}

func (k Key) String() string { return strconv.FormatInt(k.TaskID, 10) + "_" + string(k.Kind) }

// Cache records which (task, kind) notifications were already sent and when.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]time.Time
}

func NewCache() *Cache {
	return &Cache{entries: map[Key]time.Time{}}
}

func (c *Cache) Has(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[k]
	return ok
}

// Mark records k as sent at now. Marking twice just refreshes the timestamp.
func (c *Cache) Mark(k Key, now time.Time) {
	c.mu.Lock()
	c.entries[k] = now
	c.mu.Unlock()
}

// MarkedAt returns when k was marked.
func (c *Cache) MarkedAt(k Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.entries[k]
	return at, ok
}

// EvictOlderThan removes every entry whose age at now exceeds ttl and returns
// how many were removed. Entries exactly ttl old are kept.
func (c *Cache) EvictOlderThan(now time.Time, ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, at := range c.entries {
		if now.Sub(at) > ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
