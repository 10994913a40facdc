package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaultPassesPreflightWithOneEnabledDestination(t *testing.T) {
	c := Default()
	c.Destinations = []Destination{{Name: "warehouse", Family: "relational", Enabled: true, Host: "db.internal"}}
	c.Tables = []Table{{Keyspace: "public", Name: "orders"}}
	if err := c.Preflight(); err != nil {
		t.Fatalf("expected defaults plus one destination to pass preflight, got %v", err)
	}
}

func TestPreflightRejectsNoEnabledDestinations(t *testing.T) {
	c := Default()
	c.Tables = []Table{{Keyspace: "public", Name: "orders"}}
	if err := c.Preflight(); err == nil {
		t.Fatal("expected an error with no enabled destinations")
	}
}

func TestPreflightRejectsUnknownFamily(t *testing.T) {
	c := Default()
	c.Destinations = []Destination{{Name: "x", Family: "graph", Enabled: true, Host: "h"}}
	c.Tables = []Table{{Keyspace: "public", Name: "orders"}}
	if err := c.Preflight(); err == nil {
		t.Fatal("expected an error for an unknown destination family")
	}
}

func TestPreflightRejectsNoTables(t *testing.T) {
	c := Default()
	c.Destinations = []Destination{{Name: "warehouse", Family: "relational", Enabled: true, Host: "db.internal"}}
	if err := c.Preflight(); err == nil {
		t.Fatal("expected an error with no tables configured")
	}
}

func TestBindOverridesDefaults(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.Bind(fs)
	if err := fs.Parse([]string{"--batch-size=250"}); err != nil {
		t.Fatal(err)
	}
	if c.BatchSize != 250 {
		t.Fatalf("expected flag override to take effect, got %d", c.BatchSize)
	}
}

func TestPipelineConfigDerivesBatchAge(t *testing.T) {
	c := Default()
	c.MaxBatchAgeMs = 2500
	pc := c.PipelineConfig()
	if pc.MaxBatchAge.Milliseconds() != 2500 {
		t.Fatalf("expected 2500ms, got %v", pc.MaxBatchAge)
	}
}
