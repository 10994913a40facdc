package schema

import "testing"

type fakeCompat struct {
	widening bool
}

func (f fakeCompat) IsWideningOrEquivalent(oldType, newType string) bool {
	return f.widening
}

func col(name, sourceType string) ColumnDef {
	return ColumnDef{Name: name, SourceType: sourceType}
}

func TestDiffNoChange(t *testing.T) {
	old := &Snapshot{Keyspace: "ks", Table: "t", Columns: []ColumnDef{col("a", "text")}}
	cur := &Snapshot{Keyspace: "ks", Table: "t", Columns: []ColumnDef{col("a", "text")}}
	if got := diff(old, cur, nil); got != nil {
		t.Fatalf("expected no changes, got %+v", got)
	}
}

func TestDiffAddIsCompatible(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{col("a", "text")}}
	cur := &Snapshot{Columns: []ColumnDef{col("a", "text"), col("b", "int")}}
	changes := diff(old, cur, nil)
	if len(changes) != 1 || changes[0].Op != OpAdd || changes[0].Compatibility != Compatible {
		t.Fatalf("unexpected diff: %+v", changes)
	}
}

func TestDiffDropOfKeyColumnIsIncompatible(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{
		{Name: "id", SourceType: "uuid", IsPartitionKey: true},
		col("note", "text"),
	}}
	cur := &Snapshot{Columns: []ColumnDef{col("note", "text")}}
	changes := diff(old, cur, nil)
	if len(changes) != 1 || changes[0].Op != OpDrop || changes[0].Compatibility != Incompatible {
		t.Fatalf("unexpected diff: %+v", changes)
	}
}

func TestDiffDropOfPlainColumnIsCompatible(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{col("a", "text"), col("note", "text")}}
	cur := &Snapshot{Columns: []ColumnDef{col("a", "text")}}
	changes := diff(old, cur, nil)
	if len(changes) != 1 || changes[0].Op != OpDrop || changes[0].Compatibility != Compatible {
		t.Fatalf("unexpected diff: %+v", changes)
	}
}

func TestDiffAlterTypeUsesChecker(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{col("a", "int32")}}
	cur := &Snapshot{Columns: []ColumnDef{col("a", "int64")}}

	widened := diff(old, cur, fakeCompat{widening: true})
	if len(widened) != 1 || widened[0].Op != OpAlterType || widened[0].Compatibility != Compatible {
		t.Fatalf("expected compatible widening alter, got %+v", widened)
	}

	narrowed := diff(old, cur, fakeCompat{widening: false})
	if len(narrowed) != 1 || narrowed[0].Op != OpAlterType || narrowed[0].Compatibility != Incompatible {
		t.Fatalf("expected incompatible alter without checker approval, got %+v", narrowed)
	}
}

func TestDiffAlterTypeWithNilCheckerIsIncompatible(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{col("a", "int32")}}
	cur := &Snapshot{Columns: []ColumnDef{col("a", "int64")}}
	changes := diff(old, cur, nil)
	if len(changes) != 1 || changes[0].Compatibility != Incompatible {
		t.Fatalf("expected incompatible alter with no checker, got %+v", changes)
	}
}

func TestDiffOrdersDropsAddsAlters(t *testing.T) {
	old := &Snapshot{Columns: []ColumnDef{col("gone", "text"), col("kept", "int32")}}
	cur := &Snapshot{Columns: []ColumnDef{col("kept", "int64"), col("new", "text")}}
	changes := diff(old, cur, fakeCompat{widening: true})
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Op != OpDrop || changes[1].Op != OpAdd || changes[2].Op != OpAlterType {
		t.Fatalf("expected drop, add, alter order, got %+v", changes)
	}
}
