package pipeline

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/retry"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/stopper"
)

// fakeSink records every batch it receives and can be told to fail.
type fakeSink struct {
	mu      sync.Mutex
	written []sink.Batch
	failN   int
}

func (f *fakeSink) Name() string                                                      { return "fake" }
func (f *fakeSink) Connect(ctx context.Context) error                                 { return nil }
func (f *fakeSink) Close(ctx context.Context) error                                   { return nil }
func (f *fakeSink) HealthCheck(ctx context.Context) error                             { return nil }
func (f *fakeSink) ApplySchemaChange(ctx context.Context, change schema.Change) error  { return nil }

func (f *fakeSink) WriteBatch(ctx context.Context, batch sink.Batch, current offset.Offset) (sink.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return sink.WriteResult{}, retry.AsTerminal(errTestFailure)
	}
	f.written = append(f.written, batch)
	next, _ := offset.Advance(current, batch.UpToToken, batch.Events[0].SourceTimestampMicros(), int64(len(batch.Events)), time.Now())
	return sink.WriteResult{Committed: true, Offset: next}, nil
}

func (f *fakeSink) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

var errTestFailure = &testError{"simulated terminal failure"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func mkPipelineEvent(t *testing.T, partitionValue string) *event.Event {
	t.Helper()
	ev, err := event.New(event.Params{
		Kind:                  event.Insert,
		Keyspace:              "ks",
		Table:                 "users",
		PartitionKey:          []event.Column{{Name: "id", Value: partitionValue, SourceType: "uuid"}},
		Columns:               []event.Column{{Name: "email", Value: "a@b.com", SourceType: "text"}},
		SourceTimestampMicros: 100,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func testDLQ(t *testing.T) *retry.DLQ {
	t.Helper()
	dlq, _ := testDLQWithDir(t)
	return dlq
}

func testDLQWithDir(t *testing.T) (*retry.DLQ, string) {
	t.Helper()
	dir := t.TempDir()
	dlq, err := retry.NewDLQ(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dlq.Close() })
	return dlq, dir
}

func TestWorkerForIsStableAndBounded(t *testing.T) {
	ev := mkPipelineEvent(t, "a")
	slot := WorkerFor(ev, 4)
	if slot < 0 || slot >= 4 {
		t.Fatalf("expected slot in [0,4), got %d", slot)
	}
	if WorkerFor(ev, 4) != slot {
		t.Fatal("expected WorkerFor to be stable across calls")
	}
}

func TestPartitionIDIndependentOfWorkerCount(t *testing.T) {
	ev := mkPipelineEvent(t, "a")
	if PartitionID(ev) != PartitionID(ev) {
		t.Fatal("expected PartitionID to be stable")
	}
	p1 := PartitionID(ev)
	_ = WorkerFor(ev, 2)
	_ = WorkerFor(ev, 16)
	if PartitionID(ev) != p1 {
		t.Fatal("expected PartitionID to not depend on worker count")
	}
}

func TestDestinationWriteBatchSuccessAdvancesOffset(t *testing.T) {
	s := &fakeSink{}
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.MaxBatchAge = 50 * time.Millisecond
	cfg.WorkersPerDestination = 1
	dest := NewDestination("fake", s, cfg, retry.DefaultPolicy(), testDLQ(t))

	root := stopper.WithContext(context.Background())
	dest.Run(root)

	ev := mkPipelineEvent(t, "a")
	if err := dest.Enqueue(root, ev, cltoken.Token{File: "seg-0001", Position: 10}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.batchCount() != 1 {
		t.Fatalf("expected one batch written, got %d", s.batchCount())
	}
	root.Stop(time.Second)
}

func TestDestinationQuiesceBlocksNewEnqueues(t *testing.T) {
	s := &fakeSink{}
	cfg := DefaultConfig()
	cfg.WorkersPerDestination = 1
	dest := NewDestination("fake", s, cfg, retry.DefaultPolicy(), testDLQ(t))

	if !dest.Quiesce("users", time.Second) {
		t.Fatal("expected a table with no in-flight work to drain immediately")
	}
	if !dest.gate.isPaused("users") {
		t.Fatal("expected table to be paused")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := dest.Enqueue(ctx, mkPipelineEvent(t, "a"), cltoken.Token{File: "seg-0001", Position: 10}); err == nil {
		t.Fatal("expected Enqueue to block while the table is quiesced")
	}
	dest.Resume("users")
	if dest.gate.isPaused("users") {
		t.Fatal("expected table to be resumed")
	}
}

func TestQuarantinedTableRoutesStraightToDLQ(t *testing.T) {
	s := &fakeSink{}
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.MaxBatchAge = 30 * time.Millisecond
	cfg.WorkersPerDestination = 1
	dest := NewDestination("fake", s, cfg, retry.DefaultPolicy(), testDLQ(t))
	dest.quarantine.add("ks", "users")

	root := stopper.WithContext(context.Background())
	dest.Run(root)

	ev := mkPipelineEvent(t, "a")
	if err := dest.Enqueue(root, ev, cltoken.Token{File: "seg-0001", Position: 10}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if s.batchCount() != 0 {
		t.Fatalf("expected no writes to a quarantined table, got %d", s.batchCount())
	}
	root.Stop(time.Second)
}

func TestDestinationTerminalFailureRoutesToDLQAndAdvancesOffset(t *testing.T) {
	s := &fakeSink{failN: 1}
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.MaxBatchAge = 30 * time.Millisecond
	cfg.WorkersPerDestination = 1
	dlq, dir := testDLQWithDir(t)
	dest := NewDestination("fake", s, cfg, retry.DefaultPolicy(), dlq)

	root := stopper.WithContext(context.Background())
	dest.Run(root)

	ev := mkPipelineEvent(t, "a")
	if err := dest.Enqueue(root, ev, cltoken.Token{File: "seg-0001", Position: 10}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var entries []os.DirEntry
	for time.Now().Before(deadline) {
		entries, _ = os.ReadDir(dir)
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) == 0 {
		t.Fatal("expected a DLQ file to be written for a terminal failure")
	}
	if s.batchCount() != 0 {
		t.Fatalf("expected the sink to never record a successful write, got %d", s.batchCount())
	}
	key := offset.Key{Table: "users", Keyspace: "ks", PartitionID: PartitionID(ev), Destination: "fake"}
	want := cltoken.Token{File: "seg-0001", Position: 10}
	for dest.offsets.get(key).Token != want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := dest.offsets.get(key).Token; got != want {
		t.Fatalf("expected the offset to advance past the dead-lettered batch to %v, got %v", want, got)
	}
	root.Stop(time.Second)
}
