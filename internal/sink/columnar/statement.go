// Package columnar implements the C6 columnar analytic-store sink: a
// ClickHouse-family destination using a ReplacingMergeTree-style
// deduplicating engine keyed on primary key with the source timestamp
// as version, per spec.md §4.6.
package columnar

import (
	"fmt"
	"strings"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
)

// Quote is the identifier quote character ClickHouse's SQL dialect uses
// for backtick-style identifiers.
const Quote = '`'

func tableIdent(ev *event.Event) ident.Table {
	return ident.NewTable(ident.New(ev.Keyspace()), ident.New(ev.Table()))
}

// VersionColumn is the column ReplacingMergeTree uses to decide which
// duplicate row wins on merge: the source microsecond timestamp, per
// spec.md §4.6 ("version column equal to the source microsecond
// timestamp; later version wins on merge").
const VersionColumn = "source_timestamp_micros"

// InsertStatement builds the parameterized "INSERT INTO <table> (...)"
// statement for one event, per spec.md §6's columnar DML pattern.
// Deletes are represented as a row insert carrying a tombstone marker
// since ClickHouse's MergeTree family has no synchronous row deletion;
// a delete's column list is therefore just the key columns plus the
// version and a deleted flag.
func InsertStatement(ev *event.Event) (string, []any) {
	table := tableIdent(ev)

	pk := ev.PartitionKey()
	ck := ev.ClusteringKey()
	keyCols := make([]event.Column, 0, len(pk)+len(ck))
	keyCols = append(keyCols, pk...)
	keyCols = append(keyCols, ck...)

	allCols := make([]event.Column, 0, len(keyCols)+len(ev.Columns())+2)
	allCols = append(allCols, keyCols...)
	allCols = append(allCols, ev.Columns()...)

	colNames := make([]string, 0, len(allCols)+2)
	placeholders := make([]string, 0, len(allCols)+2)
	args := make([]any, 0, len(allCols)+2)
	for _, c := range allCols {
		colNames = append(colNames, ident.New(c.Name).Quoted(Quote))
		placeholders = append(placeholders, "?")
		args = append(args, c.Value)
	}

	colNames = append(colNames, ident.New(VersionColumn).Quoted(Quote), ident.New("is_deleted").Quoted(Quote))
	placeholders = append(placeholders, "?", "?")
	args = append(args, ev.SourceTimestampMicros(), ev.IsDelete())

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Qualified(Quote), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))
	return sql, args
}
