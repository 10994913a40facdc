package mask

import (
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
)

func TestClassifyPHIBeforePII(t *testing.T) {
	// "patient_id" matches both the PII pattern "id" and the PHI pattern
	// "patient"; PHI must win.
	rules := NewRuleSet([]string{"id"}, []string{"patient"})
	if got := rules.Classify("patient_id"); got != PHI {
		t.Fatalf("expected PHI to win over PII on dual match, got %v", got)
	}
}

func TestClassifyDefaults(t *testing.T) {
	rules := DefaultRuleSet()
	cases := map[string]Classification{
		"email":           PII,
		"home_address":    PII,
		"phone_number":    PII,
		"diagnosis_code":  PHI,
		"patient_id":      PHI,
		"first_name":      None,
		"created_at":      None,
	}
	for col, want := range cases {
		if got := rules.Classify(col); got != want {
			t.Errorf("Classify(%q) = %v, want %v", col, got, want)
		}
	}
}

func sampleEvent(t *testing.T) *event.Event {
	t.Helper()
	ev, err := event.New(event.Params{
		Kind:         event.Insert,
		Keyspace:     "ks",
		Table:        "users",
		PartitionKey: []event.Column{{Name: "user_id", Value: "u1"}},
		Columns: []event.Column{
			{Name: "email", Value: "a@b.com", SourceType: "text"},
			{Name: "age", Value: 30, SourceType: "int"},
			{Name: "middle_name", Value: nil, SourceType: "text"},
		},
		SourceTimestampMicros: 42,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestMaskPIIDigest(t *testing.T) {
	m := New(DefaultRuleSet(), []byte("salt"), "k1", []byte("phikey"))
	ev := sampleEvent(t)
	masked := m.Mask(ev)

	cols := masked.Columns()
	var email, age, middle *event.Column
	for i := range cols {
		switch cols[i].Name {
		case "email":
			email = &cols[i]
		case "age":
			age = &cols[i]
		case "middle_name":
			middle = &cols[i]
		}
	}
	if email == nil || email.Value == "a@b.com" {
		t.Fatalf("expected email to be digested, got %+v", email)
	}
	if s, ok := email.Value.(string); !ok || len(s) != 64 {
		t.Fatalf("expected 64-char hex digest, got %v", email.Value)
	}
	if age == nil || age.Value != 30 {
		t.Fatalf("expected age to pass through unchanged, got %+v", age)
	}
	if middle == nil || middle.Value != nil {
		t.Fatalf("expected null column to pass through unchanged, got %+v", middle)
	}
}

func TestMaskDigestIsDeterministic(t *testing.T) {
	m := New(DefaultRuleSet(), []byte("salt"), "k1", []byte("phikey"))
	ev1 := sampleEvent(t)
	ev2 := sampleEvent(t)
	m1 := m.Mask(ev1)
	m2 := m.Mask(ev2)
	if m1.Columns()[0].Value != m2.Columns()[0].Value {
		t.Fatal("expected deterministic digest for identical input")
	}
}

func TestMaskPHIUsesHMAC(t *testing.T) {
	rules := NewRuleSet(nil, []string{"diagnosis"})
	m := New(rules, []byte("salt"), "k1", []byte("phikey"))
	ev, err := event.New(event.Params{
		Kind:                  event.Insert,
		Keyspace:              "ks",
		Table:                 "visits",
		PartitionKey:          []event.Column{{Name: "visit_id", Value: "v1"}},
		Columns:               []event.Column{{Name: "diagnosis_code", Value: "J45", SourceType: "text"}},
		SourceTimestampMicros: 1,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	masked := m.Mask(ev)
	if masked.Columns()[0].Value == "J45" {
		t.Fatal("expected PHI column to be masked")
	}

	// Different key id / key must not change the algorithm choice, but a
	// changed key must change the output (keyed MAC).
	other := New(rules, []byte("salt"), "k2", []byte("other-key"))
	masked2 := other.Mask(ev)
	if masked.Columns()[0].Value == masked2.Columns()[0].Value {
		t.Fatal("expected different PHI key to produce a different token")
	}
}

func TestMaskPreservesOriginalEvent(t *testing.T) {
	m := New(DefaultRuleSet(), []byte("salt"), "k1", []byte("phikey"))
	ev := sampleEvent(t)
	original := ev.Columns()[0].Value
	m.Mask(ev)
	if ev.Columns()[0].Value != original {
		t.Fatal("masking must not mutate the original event")
	}
}

func TestCanonicalizeMapIsOrderIndependent(t *testing.T) {
	a := canonicalize(map[string]any{"b": 2, "a": 1})
	b := canonicalize(map[string]any{"a": 1, "b": 2})
	if string(a) != string(b) {
		t.Fatalf("expected canonicalized maps to match regardless of insertion order: %q vs %q", a, b)
	}
}
