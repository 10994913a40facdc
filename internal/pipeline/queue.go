// Package pipeline implements the orchestrator (component C9): it
// composes the commit-log reader, masking transform, validator, and
// per-destination sinks into one topology with bounded queues,
// per-partition ordering, backpressure, schema-change quiescence, and
// graceful shutdown, as specified in spec.md §4.9.
package pipeline

import (
	"hash/fnv"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

// item is one unit of work routed through a destination's worker
// slots: the event plus the reader token immediately after it.
type item struct {
	event *event.Event
	token cltoken.Token
}

// WorkerFor hashes an event's partition key to a stable worker slot
// within a destination, per spec.md §4.9: "hashing the partition-key to
// a worker within each destination (stable hash, workers[dest] slots)."
func WorkerFor(ev *event.Event, workerCount int) int {
	if workerCount <= 0 {
		return 0
	}
	return int(partitionHash(ev) % uint64(workerCount))
}

// PartitionID derives the stable per-partition identifier used as the
// offset manager's partition-id key component, per spec.md §3's Offset
// fields. It is independent of workers[dest], so distinct partitions
// always get distinct offset rows even when they hash to the same
// worker slot.
func PartitionID(ev *event.Event) int64 {
	return int64(partitionHash(ev) & 0x7fffffffffffffff)
}

func partitionHash(ev *event.Event) uint64 {
	h := fnv.New64a()
	h.Write([]byte(ev.Keyspace()))
	h.Write([]byte{0})
	h.Write([]byte(ev.Table()))
	h.Write([]byte{0})
	h.Write([]byte(ev.PartitionKeyString()))
	return h.Sum64()
}
