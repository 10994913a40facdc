package timeseries

import (
	"strings"
	"testing"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink/relational"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

func TestTimeSeriesDDLUsesOverriddenTimestampMapping(t *testing.T) {
	table := ident.NewTable(ident.New("ks"), ident.New("readings"))
	change := schema.Change{
		Keyspace: "ks",
		Table:    "readings",
		Columns:  []schema.ColumnChange{{Op: schema.OpAdd, Column: "recorded_at", NewType: "timestamp"}},
	}
	stmts, err := timeSeriesDDL(table, change, validate.NewTimeSeriesMapper())
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 1 || !strings.Contains(stmts[0], "timestamptz") {
		t.Fatalf("expected timezone-aware mapping in DDL, got %v", stmts)
	}

	relStmts, err := timeSeriesDDL(table, change, validate.NewRelationalMapper())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(relStmts[0], "timestamptz") {
		t.Fatal("expected the plain relational mapper not to produce the timezone-aware override")
	}
}

func TestNewEmbedsRelationalSink(t *testing.T) {
	s := New("timeseries", relational.Config{Host: "localhost", Port: 5432, Database: "db"})
	if s.Name() != "timeseries" {
		t.Fatalf("expected embedded Name() to resolve, got %q", s.Name())
	}
}
