package pipeline

import (
	"sync"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
)

// offsetCache is the orchestrator's in-memory view of each destination's
// offset rows, seeded from offset.Store.ReadAll on startup and updated from
// each batch's WriteResult, per spec.md §4.8 and §5's "sinks read on
// startup (snapshot), then only write within their batch transactions."
type offsetCache struct {
	mu    sync.RWMutex
	byKey map[offset.Key]offset.Offset
}

func newOffsetCache() *offsetCache {
	return &offsetCache{byKey: make(map[offset.Key]offset.Offset)}
}

func (c *offsetCache) get(key offset.Key) offset.Offset {
	c.mu.RLock()
	o, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return o
	}
	return offset.SeedOffset(key)
}

func (c *offsetCache) set(key offset.Key, o offset.Offset) {
	c.mu.Lock()
	c.byKey[key] = o
	c.mu.Unlock()
}

func (c *offsetCache) seed(key offset.Key, o offset.Offset) {
	c.set(key, o)
}

// quarantineSet tracks (keyspace, table) pairs latched after a failed
// DDL application, per spec.md §7's Quarantine category: subsequent
// events for that table are DLQ'd until an operator clears the state.
type quarantineSet struct {
	mu  sync.RWMutex
	set map[string]bool
}

func newQuarantineSet() *quarantineSet {
	return &quarantineSet{set: make(map[string]bool)}
}

func quarantineKey(keyspace, table string) string { return keyspace + "." + table }

func (q *quarantineSet) contains(keyspace, table string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.set[quarantineKey(keyspace, table)]
}

func (q *quarantineSet) add(keyspace, table string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.set[quarantineKey(keyspace, table)] = true
}

// Clear removes the quarantine latch for (keyspace, table), the
// operator action named in spec.md §7.
func (q *quarantineSet) Clear(keyspace, table string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.set, quarantineKey(keyspace, table))
}
