// Package event defines Event, the immutable record of a single row
// mutation that flows through the replicator, as specified in
// spec.md §3 and §4.3.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Kind enumerates the three mutation kinds named in spec.md §3.
type Kind int

const (
	// Insert is a new row.
	Insert Kind = iota
	// Update is a change to an existing row.
	Update
	// Delete removes a row.
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Column is one name/value pair within an ordered column mapping
// (partition key, clustering key, or the general column set). SourceType
// carries the source database's type tag so that later stages (mapper,
// validator) can make type-aware decisions without re-deriving it.
type Column struct {
	Name       string
	Value      any
	SourceType string
}

// Params are the constructor arguments for New. All fields mirror the
// Event fields named in spec.md §3.
type Params struct {
	Kind                  Kind
	Keyspace              string
	Table                 string
	PartitionKey          []Column
	ClusteringKey         []Column // optional
	Columns               []Column // empty for Delete
	SourceTimestampMicros int64
	TTLSeconds            int64 // 0 means unset
	CaptureTime           time.Time
}

// Event is an immutable record of one row mutation. Construct with New;
// there are no exported mutator methods other than WithColumns, which
// returns a new Event rather than modifying the receiver.
type Event struct {
	id                    string
	kind                  Kind
	keyspace              string
	table                 string
	partitionKey          []Column
	clusteringKey         []Column
	columns               []Column
	sourceTimestampMicros int64
	ttlSeconds            int64
	captureTime           time.Time
}

// SkewTolerance bounds how far into the future a capture time may be
// relative to wall-clock now before construction rejects it, accounting
// for modest clock drift between the reader host and this process.
const SkewTolerance = 5 * time.Minute

// New validates Params against the invariants in spec.md §4.3 and
// constructs an Event. The id is derived deterministically from
// (keyspace, table, partition key, clustering key, source timestamp) via
// ComputeID, so replaying the same bytes through the parser always
// produces the same Event identity.
func New(p Params) (*Event, error) {
	if p.Keyspace == "" {
		return nil, errors.New("event: keyspace must not be empty")
	}
	if p.Table == "" {
		return nil, errors.New("event: table must not be empty")
	}
	if len(p.PartitionKey) == 0 {
		return nil, errors.New("event: partition key must not be empty")
	}
	if p.SourceTimestampMicros <= 0 {
		return nil, errors.New("event: source timestamp must be positive")
	}
	if p.TTLSeconds < 0 {
		return nil, errors.New("event: ttl must be positive when set")
	}
	switch p.Kind {
	case Insert, Update:
		if len(p.Columns) == 0 {
			return nil, errors.Errorf("event: %s requires non-empty columns", p.Kind)
		}
	case Delete:
		if len(p.Columns) != 0 {
			return nil, errors.New("event: delete must not carry column values")
		}
	default:
		return nil, errors.Errorf("event: unknown kind %d", p.Kind)
	}
	if p.CaptureTime.IsZero() {
		return nil, errors.New("event: capture time must be set")
	}
	if p.CaptureTime.After(time.Now().Add(SkewTolerance)) {
		return nil, errors.New("event: capture time too far in the future")
	}

	return &Event{
		id:                    ComputeID(p.Keyspace, p.Table, p.PartitionKey, p.ClusteringKey, p.SourceTimestampMicros),
		kind:                  p.Kind,
		keyspace:              p.Keyspace,
		table:                 p.Table,
		partitionKey:          append([]Column(nil), p.PartitionKey...),
		clusteringKey:         append([]Column(nil), p.ClusteringKey...),
		columns:               append([]Column(nil), p.Columns...),
		sourceTimestampMicros: p.SourceTimestampMicros,
		ttlSeconds:            p.TTLSeconds,
		captureTime:           p.CaptureTime,
	}, nil
}

// ComputeID derives a stable event id from the fields the parser
// guarantees are deterministic across replays of the same commit-log
// bytes: (keyspace, table, partition key, clustering key, source
// timestamp). It never reads column values, since those are exactly what
// an update/delete may legitimately vary across reparses of the same
// logical mutation boundary.
func ComputeID(keyspace, table string, partitionKey, clusteringKey []Column, sourceTimestampMicros int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", keyspace, table)
	for _, c := range partitionKey {
		fmt.Fprintf(h, "%s=%v\x00", c.Name, c.Value)
	}
	h.Write([]byte{0xff})
	for _, c := range clusteringKey {
		fmt.Fprintf(h, "%s=%v\x00", c.Name, c.Value)
	}
	fmt.Fprintf(h, "\x00%d", sourceTimestampMicros)
	return hex.EncodeToString(h.Sum(nil))
}

// WithColumns returns a new Event identical to e except that its
// Columns() are replaced with replacement. This is the copy-on-transform
// operation the masking stage uses: the original Event is discarded by
// its caller once the replacement has been produced.
func (e *Event) WithColumns(replacement []Column) *Event {
	cp := *e
	cp.columns = append([]Column(nil), replacement...)
	return &cp
}

// ID returns the event's stable identity.
func (e *Event) ID() string { return e.id }

// Kind returns the mutation kind.
func (e *Event) Kind() Kind { return e.kind }

// Keyspace returns the source keyspace name.
func (e *Event) Keyspace() string { return e.keyspace }

// Table returns the source table name.
func (e *Event) Table() string { return e.table }

// PartitionKey returns the ordered partition-key columns.
func (e *Event) PartitionKey() []Column { return append([]Column(nil), e.partitionKey...) }

// ClusteringKey returns the ordered clustering-key columns, if any.
func (e *Event) ClusteringKey() []Column { return append([]Column(nil), e.clusteringKey...) }

// Columns returns the ordered column values; empty for a Delete.
func (e *Event) Columns() []Column { return append([]Column(nil), e.columns...) }

// SourceTimestampMicros returns the source commit timestamp in
// microseconds since the epoch.
func (e *Event) SourceTimestampMicros() int64 { return e.sourceTimestampMicros }

// TTLSeconds returns the row TTL in seconds, or 0 if unset.
func (e *Event) TTLSeconds() int64 { return e.ttlSeconds }

// HasTTL reports whether a TTL was set on this mutation.
func (e *Event) HasTTL() bool { return e.ttlSeconds > 0 }

// CaptureTime returns the wall-clock time the reader observed this
// mutation.
func (e *Event) CaptureTime() time.Time { return e.captureTime }

// IsDelete reports whether this Event represents a row deletion.
func (e *Event) IsDelete() bool { return e.kind == Delete }

// Equal compares two Events by stable id, per spec.md §4.3
// ("Equality/identity is by stable id").
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.id == other.id
}

// PartitionKeyString renders the partition key as a canonical string,
// suitable for hashing an event to a worker slot (see
// internal/pipeline's stable-hash requirement in spec.md §4.9).
func (e *Event) PartitionKeyString() string {
	var b []byte
	for _, c := range e.partitionKey {
		b = append(b, []byte(fmt.Sprintf("%s=%v\x00", c.Name, c.Value))...)
	}
	return string(b)
}
