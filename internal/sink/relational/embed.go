package relational

import "embed"

// SchemaFS holds the bootstrap DDL assets for the relational warehouse's
// own bookkeeping tables (currently just the shared offsets table).
// Destination data tables are created by the source system's schema, not
// by this sink.
//
//go:embed schema/*.sql
var SchemaFS embed.FS
