package commitlog

import (
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
)

func sampleEvent(t *testing.T) *event.Event {
	t.Helper()
	ev, err := event.New(event.Params{
		Kind:                  event.Insert,
		Keyspace:              "ks",
		Table:                 "users",
		PartitionKey:          []event.Column{{Name: "user_id", Value: "u1", SourceType: "uuid"}},
		Columns:               []event.Column{{Name: "email", Value: "a@b.com", SourceType: "text"}},
		SourceTimestampMicros: 42,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestRoundTrip(t *testing.T) {
	ev := sampleEvent(t)
	captureTime := ev.CaptureTime()

	buf, err := EncodeFrame(ev)
	if err != nil {
		t.Fatal(err)
	}

	decoded, consumed, err := DecodeFrame(buf, captureTime)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(buf) {
		t.Fatalf("consumed %d, want %d", consumed, len(buf))
	}
	if !decoded.Equal(ev) {
		t.Fatal("decoded event should have the same stable id as the original")
	}
	if decoded.Columns()[0].Value != "a@b.com" {
		t.Fatal("decoded column values should match")
	}
}

func TestDecodeIncomplete(t *testing.T) {
	ev := sampleEvent(t)
	buf, err := EncodeFrame(ev)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = DecodeFrame(buf[:len(buf)-1], time.Now())
	if !IsIncomplete(err) {
		t.Fatalf("expected incomplete frame error, got %v", err)
	}
}

func TestDecodeMalformedPayloadAdvancesPastFrame(t *testing.T) {
	ev := sampleEvent(t)
	buf, err := EncodeFrame(ev)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the payload bytes (leave the length prefix intact) so the
	// frame boundary is still known but the JSON won't parse.
	for i := 4; i < len(buf); i++ {
		buf[i] = '!'
	}
	_, consumed, err := DecodeFrame(buf, time.Now())
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if IsIncomplete(err) {
		t.Fatal("corrupted payload of known length is not incomplete")
	}
	if consumed != len(buf) {
		t.Fatalf("consumed %d, want %d so the caller can skip the whole frame", consumed, len(buf))
	}
}
