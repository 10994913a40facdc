// Package schema implements the schema monitor (component C3): it polls
// the source catalog, diffs snapshots, and emits SchemaChange
// notifications, as specified in spec.md §4.2.
package schema

// ColumnDef describes one column as named in spec.md §3's SchemaSnapshot.
type ColumnDef struct {
	Name            string
	SourceType      string
	IsPartitionKey  bool
	IsClusteringKey bool
	IsStatic        bool
}

// Snapshot is a point-in-time description of one (keyspace, table)'s
// schema, plus a monotone version number that increments on every
// observed change.
type Snapshot struct {
	Keyspace string
	Table    string
	Columns  []ColumnDef // ordered as the catalog reports them
	Version  int
}

func (s *Snapshot) columnsByName() map[string]ColumnDef {
	m := make(map[string]ColumnDef, len(s.Columns))
	for _, c := range s.Columns {
		m[c.Name] = c
	}
	return m
}

// Key identifies a monitored (keyspace, table) pair.
type Key struct {
	Keyspace string
	Table    string
}
