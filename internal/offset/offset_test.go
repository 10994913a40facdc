package offset

import (
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

func TestAdvanceMonotone(t *testing.T) {
	key := Key{Table: "users", Keyspace: "ks", PartitionID: 1, Destination: "relational"}
	current := SeedOffset(key)

	next, ok := Advance(current, cltoken.Token{File: "commitlog-0001.log", Position: 100}, 10, 3, time.Now())
	if !ok {
		t.Fatal("expected first advance to succeed")
	}
	if next.EventsReplicatedCount != 3 || next.LastEventTimestamp != 10 {
		t.Fatalf("unexpected offset after advance: %+v", next)
	}
}

func TestAdvanceRejectsDuplicateReplay(t *testing.T) {
	key := Key{Table: "users", Keyspace: "ks", PartitionID: 1, Destination: "relational"}
	current := Offset{Key: key, Token: cltoken.Token{File: "commitlog-0001.log", Position: 100}}

	_, ok := Advance(current, cltoken.Token{File: "commitlog-0001.log", Position: 50}, 5, 1, time.Now())
	if ok {
		t.Fatal("expected advance to a lesser position to be rejected as a no-op")
	}

	_, ok = Advance(current, cltoken.Token{File: "commitlog-0001.log", Position: 100}, 5, 1, time.Now())
	if ok {
		t.Fatal("expected advance to the same position to be rejected as a no-op")
	}
}

func TestAdvancePreservesHighWaterTimestamp(t *testing.T) {
	key := Key{Table: "users", Keyspace: "ks", PartitionID: 1, Destination: "relational"}
	current := Offset{
		Key:                key,
		Token:              cltoken.Token{File: "commitlog-0001.log", Position: 10},
		LastEventTimestamp: 100,
	}
	next, ok := Advance(current, cltoken.Token{File: "commitlog-0001.log", Position: 20}, 50, 1, time.Now())
	if !ok {
		t.Fatal("expected advance to succeed")
	}
	if next.LastEventTimestamp != 100 {
		t.Fatalf("expected high-water timestamp preserved, got %d", next.LastEventTimestamp)
	}
}

func TestSeedOffsetUsesZeroToken(t *testing.T) {
	key := Key{Table: "users", Keyspace: "ks", PartitionID: 0, Destination: "columnar"}
	seed := SeedOffset(key)
	if !seed.Token.IsZero() {
		t.Fatalf("expected zero token for a fresh key, got %+v", seed.Token)
	}
}

func TestArgsOrder(t *testing.T) {
	key := Key{Table: "users", Keyspace: "ks", PartitionID: 2, Destination: "relational"}
	o := Offset{Key: key, Token: cltoken.Token{File: "f", Position: 5}, LastEventTimestamp: 9, EventsReplicatedCount: 1}
	args := Args(o)
	if len(args) != 10 {
		t.Fatalf("expected 10 positional args, got %d", len(args))
	}
	if args[0] != "users" || args[4] != "f" || args[5] != int64(5) {
		t.Fatalf("unexpected arg ordering: %+v", args)
	}
}
