package commitlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

func writeSegment(t *testing.T, dir, name string, events ...*event.Event) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, ev := range events {
		buf, err := EncodeFrame(ev)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write(buf); err != nil {
			t.Fatal(err)
		}
	}
}

func mkEvent(t *testing.T, key string, ts int64) *event.Event {
	t.Helper()
	ev, err := event.New(event.Params{
		Kind:                  event.Insert,
		Keyspace:              "ks",
		Table:                 "users",
		PartitionKey:          []event.Column{{Name: "user_id", Value: key}},
		Columns:               []event.Column{{Name: "email", Value: "a@b.com"}},
		SourceTimestampMicros: ts,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestReaderResumesFromOldest(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "commitlog-0001.log", mkEvent(t, "u1", 1), mkEvent(t, "u2", 2))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r := New(dir, WithPollInterval(20*time.Millisecond))
	stream, err := r.Open(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case res := <-stream:
			if res.Event == nil {
				t.Fatalf("unexpected skip: %+v", res.Skip)
			}
			got = append(got, res.Event.ID())
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestReaderResumesFromToken(t *testing.T) {
	dir := t.TempDir()
	ev1 := mkEvent(t, "u1", 1)
	ev2 := mkEvent(t, "u2", 2)
	buf1, _ := EncodeFrame(ev1)
	writeSegment(t, dir, "commitlog-0001.log", ev1, ev2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := &cltoken.Token{File: "commitlog-0001.log", Position: int64(len(buf1))}
	r := New(dir, WithPollInterval(20*time.Millisecond))
	stream, err := r.Open(ctx, start)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-stream:
		if res.Event == nil {
			t.Fatalf("unexpected skip: %+v", res.Skip)
		}
		if !res.Event.Equal(ev2) {
			t.Fatal("expected to resume at the second event only")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
