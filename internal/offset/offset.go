// Package offset implements the offset manager (component C8): it
// tracks per-(table, keyspace, partition, destination) replication
// progress and enforces monotonic advancement, as specified in
// spec.md §4.8.
package offset

import (
	"context"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

// Key identifies one offset row, per spec.md §3's Offset fields.
type Key struct {
	Table       string
	Keyspace    string
	PartitionID int64
	Destination string
}

// Offset is the persisted progress record for one Key, per spec.md §3.
type Offset struct {
	Key                   Key
	Token                 cltoken.Token
	LastEventTimestamp    int64
	LastCommittedAt       time.Time
	EventsReplicatedCount int64
}

// InitialToken is the resumption point used when no offset row exists
// yet for a key, per spec.md §4.8: "oldest available commit-log file,
// position 0." The reader is responsible for resolving "oldest
// available" against the live directory listing; an empty file name
// here signals "no constraint, start from the oldest segment."
var InitialToken = cltoken.Zero()

// Store is the durable backing for offset rows. Concrete sinks embed a
// Store-backed implementation so that offset and data writes can share
// one transaction, per spec.md §4.6; the columnar sink instead uses its
// own deduplicating offsets table via the same interface.
//
// ReadAll, not a single-key Read, is the startup entry point: a
// (table, keyspace, destination) tuple fans out over one row per
// partition, and the partition id is a hash of each event's partition
// key value (spec.md §4.9) that is not known until events are read, so
// there is no way to ask for a single partition's row before the
// commit log has been read at least once. ReadAll returns every
// partition row already on record for the tuple, letting the caller
// seed its in-memory cache per spec.md §4.8's "read on startup."
type Store interface {
	ReadAll(ctx context.Context, keyspace, table, destination string) ([]Offset, error)
}

// Advance computes the next Offset for key given a candidate new
// position, applying the monotonicity rule from spec.md §4.8: if
// (newFile, newPosition) is not strictly greater than what is stored,
// the advance is a no-op and ok is false, so sinks can recognize a
// duplicate replay and skip the write.
func Advance(current Offset, newToken cltoken.Token, newTimestamp int64, delta int64, committedAt time.Time) (Offset, bool) {
	if !cltoken.After(newToken, current.Token) {
		return current, false
	}
	next := current
	next.Token = newToken
	if newTimestamp > next.LastEventTimestamp {
		next.LastEventTimestamp = newTimestamp
	}
	next.LastCommittedAt = committedAt
	next.EventsReplicatedCount += delta
	return next, true
}

// SeedOffset returns the starting Offset for a key with no existing
// row, per spec.md §4.8's initial-position rule.
func SeedOffset(key Key) Offset {
	return Offset{Key: key, Token: InitialToken}
}
