// Package sink defines the shared destination interface (component C6):
// batched idempotent writes, schema-change DDL application, and health
// checks, as specified in spec.md §4.6. Concrete bindings live in the
// relational, timeseries, and columnar subpackages.
package sink

import (
	"context"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

// Batch is a contiguous run of events from one partition, bounded by the
// orchestrator per (maxBatchSize, maxBatchBytes, maxBatchAgeMs), per
// spec.md §4.6. UpToToken is the reader Token immediately after the last
// event in the batch — the position the offset advances to once the
// whole batch commits.
type Batch struct {
	Keyspace    string
	Table       string
	PartitionID int64
	Events      []*event.Event
	UpToToken   cltoken.Token
}

// WriteResult reports what a WriteBatch call actually committed, for the
// orchestrator's throughput accounting (spec.md §4.6).
type WriteResult struct {
	Committed bool
	Offset    offset.Offset
}

// Sink is the operation set every destination implements, matching
// spec.md §4.6's "connect, writeBatch(events, offset) -> commit,
// applySchemaChange(change), healthCheck" contract and the shape of the
// teacher's types.Applier/Appliers factory abstraction.
type Sink interface {
	// Name identifies this destination for metrics, logs, and offset
	// keys (spec.md §6's destination enum).
	Name() string

	// Connect establishes the destination connection pool. It must be
	// idempotent and safe to call once before the sink is used.
	Connect(ctx context.Context) error

	// WriteBatch writes one partition's contiguous batch and advances
	// its offset, atomically where the destination supports it
	// (relational/time-series), or in the insert-then-offset sequence
	// described in spec.md §4.6 for the columnar store. The call is
	// idempotent at the (event-id, primary-key) granularity: replaying
	// an already-committed batch is a no-op beyond a redundant upsert.
	WriteBatch(ctx context.Context, batch Batch, current offset.Offset) (WriteResult, error)

	// ApplySchemaChange issues destination DDL equivalent to change,
	// using this sink's type mapper, per spec.md §4.6.
	ApplySchemaChange(ctx context.Context, change schema.Change) error

	// HealthCheck reports this destination's current health, feeding
	// the diag.Diagnostics registry (spec.md §6's health surface).
	HealthCheck(ctx context.Context) error

	// Close releases the destination's connection pool.
	Close(ctx context.Context) error
}

// Throughput is the moving-average events/sec and in-flight batch count
// a sink maintains for §5's backpressure and the metrics surface.
type Throughput struct {
	EventsPerSecond float64
	InFlightBatches int
}

// ThroughputTracker is an optional capability a Sink may implement to
// expose Throughput; not all destinations need bespoke accounting beyond
// what the orchestrator already derives from queue depth.
type ThroughputTracker interface {
	Throughput() Throughput
}

// CompatibilityProvider is an optional capability a Sink may implement to
// expose its type mapper's widening rules, so the orchestrator can build
// a schema.Monitor that classifies alter-type changes the way this
// destination actually will, per spec.md §4.2.
type CompatibilityProvider interface {
	Compat() schema.TypeCompatibilityChecker
}

// OffsetReader is an optional capability a Sink may implement to expose
// its offset.Store, so the orchestrator can seed its in-memory offset
// cache from persisted progress on startup, per spec.md §4.8.
type OffsetReader interface {
	offset.Store
}

// DefaultConnectTimeout and DefaultStatementTimeout are the per-call
// network timeouts named in spec.md §5.
const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
)
