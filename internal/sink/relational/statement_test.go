package relational

import (
	"strings"
	"testing"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

func mkEvent(t *testing.T, kind event.Kind) *event.Event {
	t.Helper()
	cols := []event.Column{{Name: "email", Value: "a@b.com", SourceType: "text"}}
	if kind == event.Delete {
		cols = nil
	}
	ev, err := event.New(event.Params{
		Kind:                  kind,
		Keyspace:              "ks",
		Table:                 "users",
		PartitionKey:          []event.Column{{Name: "user_id", Value: "u1", SourceType: "uuid"}},
		Columns:               cols,
		SourceTimestampMicros: 42,
		CaptureTime:           time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestUpsertStatementShape(t *testing.T) {
	ev := mkEvent(t, event.Insert)
	sql, args := UpsertStatement(ev)

	if !strings.Contains(sql, `INSERT INTO "ks"."users"`) {
		t.Fatalf("expected qualified insert target, got %q", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT") || !strings.Contains(sql, "DO UPDATE SET") {
		t.Fatalf("expected upsert clause, got %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 positional args (pk + column), got %d: %v", len(args), args)
	}
}

func TestDeleteStatementShape(t *testing.T) {
	ev := mkEvent(t, event.Delete)
	sql, args := DeleteStatement(ev)
	if !strings.HasPrefix(sql, `DELETE FROM "ks"."users" WHERE`) {
		t.Fatalf("unexpected delete statement: %q", sql)
	}
	if len(args) != 1 {
		t.Fatalf("expected 1 positional arg for the partition key, got %d", len(args))
	}
}

func TestDDLStatementsOrderAndMapping(t *testing.T) {
	change := schema.Change{
		Keyspace: "ks",
		Table:    "users",
		Columns: []schema.ColumnChange{
			{Op: schema.OpDrop, Column: "legacy_flag"},
			{Op: schema.OpAdd, Column: "nickname", NewType: "text"},
			{Op: schema.OpAlterType, Column: "age", OldType: "int", NewType: "bigint"},
		},
	}
	stmts, err := ddlStatements(
		tableIdent(mkEvent(t, event.Insert)),
		change,
		validate.NewRelationalMapper(),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %v", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], "DROP COLUMN") {
		t.Fatalf("expected drop first, got %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "ADD COLUMN") || !strings.Contains(stmts[1], "text") {
		t.Fatalf("expected add with mapped type, got %q", stmts[1])
	}
	if !strings.Contains(stmts[2], "ALTER COLUMN") || !strings.Contains(stmts[2], "bigint") {
		t.Fatalf("expected alter with mapped type, got %q", stmts[2])
	}
}

func TestDDLStatementsRejectsUnmappedAddType(t *testing.T) {
	change := schema.Change{
		Keyspace: "ks",
		Table:    "users",
		Columns:  []schema.ColumnChange{{Op: schema.OpAdd, Column: "ctr", NewType: "counter"}},
	}
	_, err := ddlStatements(tableIdent(mkEvent(t, event.Insert)), change, validate.NewRelationalMapper())
	if err == nil {
		t.Fatal("expected an error for an unmapped added column type")
	}
}
