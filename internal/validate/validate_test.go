package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
)

func mkEvent(t *testing.T, sourceType string) *event.Event {
	t.Helper()
	ev, err := event.New(event.Params{
		Kind:                  event.Insert,
		Keyspace:              "ks",
		Table:                 "users",
		PartitionKey:          []event.Column{{Name: "user_id", Value: "u1", SourceType: "uuid"}},
		Columns:               []event.Column{{Name: "email", Value: "a@b.com", SourceType: sourceType}},
		SourceTimestampMicros: 1,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestValidateAcceptsMappedType(t *testing.T) {
	v := New(NewRelationalMapper())
	if err := v.Validate(mkEvent(t, "text"), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	v := New(NewRelationalMapper())
	err := v.Validate(mkEvent(t, "counter"), nil)
	var si *SchemaIncompatible
	if !errors.As(err, &si) || si.Reason != ReasonUnsupportedType {
		t.Fatalf("expected unsupported-type error, got %v", err)
	}
}

func TestValidateAcceptsColumnAbsentFromCache(t *testing.T) {
	v := New(NewRelationalMapper())
	cached := &schema.Snapshot{Keyspace: "ks", Table: "users"}
	if err := v.Validate(mkEvent(t, "text"), cached); err != nil {
		t.Fatalf("expected add-column race to be accepted, got %v", err)
	}
}

func TestValidateRejectsKeyDrop(t *testing.T) {
	v := New(NewRelationalMapper())
	cached := &schema.Snapshot{
		Keyspace: "ks",
		Table:    "users",
		Columns:  []schema.ColumnDef{{Name: "email", SourceType: "text"}},
	}
	err := v.Validate(mkEvent(t, "text"), cached)
	var si *SchemaIncompatible
	if !errors.As(err, &si) || si.Reason != ReasonKeyDrop {
		t.Fatalf("expected key-drop error for dropped partition key, got %v", err)
	}
}

func TestTimeSeriesMapperOverridesTimestamp(t *testing.T) {
	rel := NewRelationalMapper()
	ts := NewTimeSeriesMapper()

	relType, _ := rel.MapType("timestamp")
	tsType, _ := ts.MapType("timestamp")
	if relType == tsType {
		t.Fatalf("expected time-series mapper to override timestamp type, both were %q", relType)
	}

	// Non-overridden types still resolve via the inherited table.
	relText, _ := rel.MapType("text")
	tsText, _ := ts.MapType("text")
	if relText != tsText {
		t.Fatalf("expected inherited mapping for text, got %q vs %q", relText, tsText)
	}
}

func TestWideningTransformsClassifiedCompatible(t *testing.T) {
	m := NewRelationalMapper()
	if !m.IsWideningOrEquivalent("int", "bigint") {
		t.Fatal("int -> bigint should be widening")
	}
	if m.IsWideningOrEquivalent("text", "int") {
		t.Fatal("text -> int should not be widening")
	}
}
