// Package ident provides quoted identifiers for the keyspaces, tables,
// and columns that flow through the replicator. A destination never sees
// a bare string; it sees an Ident that already knows how to quote itself
// for that destination's SQL dialect.
package ident

import (
	"fmt"
	"strings"
)

// Ident is a single quoted name, e.g. a column or keyspace name.
type Ident struct {
	raw string
}

// New constructs an Ident from a raw, unquoted name.
func New(raw string) Ident { return Ident{raw: raw} }

// Raw returns the unquoted name.
func (i Ident) Raw() string { return i.raw }

// Empty reports whether the identifier has no name.
func (i Ident) Empty() bool { return i.raw == "" }

func (i Ident) String() string { return i.raw }

// Quoted renders the identifier using the given quote character, doubling
// any embedded quote characters as is conventional for SQL dialects.
func (i Ident) Quoted(quote byte) string {
	q := string(quote)
	escaped := strings.ReplaceAll(i.raw, q, q+q)
	return q + escaped + q
}

// Table names a (keyspace, table) pair at a destination.
type Table struct {
	Keyspace Ident
	Name     Ident
}

// NewTable constructs a Table identifier.
func NewTable(keyspace, name Ident) Table {
	return Table{Keyspace: keyspace, Name: name}
}

func (t Table) String() string {
	return fmt.Sprintf("%s.%s", t.Keyspace.Raw(), t.Name.Raw())
}

// Qualified renders "keyspace"."table" using the destination's quote rune.
func (t Table) Qualified(quote byte) string {
	return t.Keyspace.Quoted(quote) + "." + t.Name.Quoted(quote)
}

// Column names a single column within a Table.
type Column struct {
	Table Table
	Name  Ident
}

func (c Column) String() string {
	return fmt.Sprintf("%s.%s", c.Table, c.Name.Raw())
}
