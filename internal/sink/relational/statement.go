// Package relational implements the C6 relational-warehouse sink: a
// PostgreSQL-family destination reached via pgx, writing each batch with
// one transaction per spec.md §4.6.
package relational

import (
	"fmt"
	"strings"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
)

// Quote is the identifier quote character this destination family uses.
const Quote = '"'

// tableIdent resolves the destination-qualified table identifier for an
// event's (keyspace, table).
func tableIdent(ev *event.Event) ident.Table {
	return ident.NewTable(ident.New(ev.Keyspace()), ident.New(ev.Table()))
}

// UpsertStatement builds the parameterized
// "INSERT ... VALUES (...) ON CONFLICT (<pk>) DO UPDATE SET ..." statement
// for one event, per spec.md §6's relational DML pattern. It returns the
// SQL text (with $1.. placeholders) and the positional argument list in
// the same order as the column list.
func UpsertStatement(ev *event.Event) (string, []any) {
	table := tableIdent(ev)

	pk := ev.PartitionKey()
	ck := ev.ClusteringKey()
	keyCols := make([]event.Column, 0, len(pk)+len(ck))
	keyCols = append(keyCols, pk...)
	keyCols = append(keyCols, ck...)

	allCols := make([]event.Column, 0, len(keyCols)+len(ev.Columns()))
	allCols = append(allCols, keyCols...)
	allCols = append(allCols, ev.Columns()...)

	colNames := make([]string, len(allCols))
	placeholders := make([]string, len(allCols))
	args := make([]any, len(allCols))
	for i, c := range allCols {
		colNames[i] = ident.New(c.Name).Quoted(Quote)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.Value
	}

	keyNames := make([]string, len(keyCols))
	for i, c := range keyCols {
		keyNames[i] = ident.New(c.Name).Quoted(Quote)
	}

	updateClauses := make([]string, 0, len(ev.Columns()))
	for _, c := range ev.Columns() {
		quoted := ident.New(c.Name).Quoted(Quote)
		updateClauses = append(updateClauses, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		table.Qualified(Quote), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))
	if len(updateClauses) > 0 {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(keyNames, ", "), strings.Join(updateClauses, ", "))
	} else {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", strings.Join(keyNames, ", "))
	}

	return sb.String(), args
}

// DeleteStatement builds the parameterized delete for a delete-kind
// event, matched by its partition and clustering key columns.
func DeleteStatement(ev *event.Event) (string, []any) {
	table := tableIdent(ev)
	pk := ev.PartitionKey()
	ck := ev.ClusteringKey()
	keyCols := make([]event.Column, 0, len(pk)+len(ck))
	keyCols = append(keyCols, pk...)
	keyCols = append(keyCols, ck...)

	conds := make([]string, len(keyCols))
	args := make([]any, len(keyCols))
	for i, c := range keyCols {
		conds[i] = fmt.Sprintf("%s = $%d", ident.New(c.Name).Quoted(Quote), i+1)
		args[i] = c.Value
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table.Qualified(Quote), strings.Join(conds, " AND "))
	return sql, args
}
