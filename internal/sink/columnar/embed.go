package columnar

import "embed"

// SchemaFS holds the bootstrap DDL for this sink's own offsets table.
// Destination data tables are created from the source schema by the
// operator, per spec.md §1's bootstrap-DDL non-goal.
//
//go:embed schema/*.sql
var SchemaFS embed.FS
