package schema

import "sort"

// Op enumerates the three column-level change operations named in
// spec.md §3's SchemaChange.
type Op int

const (
	// OpDrop removes a column. Diffed first, per spec.md §4.2.
	OpDrop Op = iota
	// OpAdd introduces a column. Diffed second.
	OpAdd
	// OpAlterType changes a column's source type. Diffed last.
	OpAlterType
)

func (o Op) String() string {
	switch o {
	case OpDrop:
		return "drop"
	case OpAdd:
		return "add"
	case OpAlterType:
		return "alter-type"
	default:
		return "unknown"
	}
}

// Compatibility classifies whether a column-level change can be applied
// without halting replication for that table, per spec.md §4.2.
type Compatibility int

const (
	// Compatible changes are applied via DDL and replication continues.
	Compatible Compatibility = iota
	// Incompatible changes cause matching events to be routed to the DLQ
	// by the validator (spec.md §4.5) rather than halting the pipeline.
	Incompatible
)

// ColumnChange is one entry in a Change's ordered operation list.
type ColumnChange struct {
	Op            Op
	Column        string
	OldType       string
	NewType       string
	Compatibility Compatibility
}

// Change is the SchemaChange notification described in spec.md §3,
// derived by diffing two Snapshots.
type Change struct {
	Keyspace   string
	Table      string
	OldVersion int
	NewVersion int
	Columns    []ColumnChange
}

// TypeCompatibilityChecker decides whether a source-type alteration is a
// widening or equivalent transform, per spec.md §4.2. The destination
// mapper (internal/validate) implements this.
type TypeCompatibilityChecker interface {
	IsWideningOrEquivalent(oldType, newType string) bool
}

// diff compares old against cur and returns the ordered list of
// column-level changes: drops first, then adds, then alter-type, each
// group sorted by column name, as specified in spec.md §4.2. A nil
// return means no change.
func diff(old, cur *Snapshot, compat TypeCompatibilityChecker) []ColumnChange {
	oldCols := old.columnsByName()
	curCols := cur.columnsByName()

	var drops, adds, alters []ColumnChange

	for name, oc := range oldCols {
		if _, stillPresent := curCols[name]; !stillPresent {
			compatibility := Compatible
			if oc.IsPartitionKey || oc.IsClusteringKey {
				compatibility = Incompatible
			}
			drops = append(drops, ColumnChange{
				Op: OpDrop, Column: name, OldType: oc.SourceType, Compatibility: compatibility,
			})
		}
	}
	for name, nc := range curCols {
		if _, existedBefore := oldCols[name]; !existedBefore {
			adds = append(adds, ColumnChange{
				Op: OpAdd, Column: name, NewType: nc.SourceType, Compatibility: Compatible,
			})
		}
	}
	for name, oc := range oldCols {
		nc, stillPresent := curCols[name]
		if !stillPresent || oc.SourceType == nc.SourceType {
			continue
		}
		compatibility := Incompatible
		if compat != nil && compat.IsWideningOrEquivalent(oc.SourceType, nc.SourceType) {
			compatibility = Compatible
		}
		alters = append(alters, ColumnChange{
			Op: OpAlterType, Column: name, OldType: oc.SourceType, NewType: nc.SourceType,
			Compatibility: compatibility,
		})
	}

	byName := func(s []ColumnChange) {
		sort.Slice(s, func(i, j int) bool { return s[i].Column < s[j].Column })
	}
	byName(drops)
	byName(adds)
	byName(alters)

	if len(drops)+len(adds)+len(alters) == 0 {
		return nil
	}
	out := make([]ColumnChange, 0, len(drops)+len(adds)+len(alters))
	out = append(out, drops...)
	out = append(out, adds...)
	out = append(out, alters...)
	return out
}
