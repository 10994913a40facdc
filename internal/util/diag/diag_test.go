package diag

import (
	"context"
	"errors"
	"testing"
)

type fakePing struct{ err error }

func (f fakePing) Ping(context.Context) error { return f.err }

func TestCheckAndOverall(t *testing.T) {
	d := New()
	d.Register("ok", fakePing{})
	d.Register("bad", fakePing{err: errors.New("down")})

	reports := d.Check(context.Background())
	if reports["ok"].Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", reports["ok"].Status)
	}
	if reports["bad"].Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", reports["bad"].Status)
	}
	if Overall(reports) != StatusUnhealthy {
		t.Fatal("expected overall unhealthy")
	}
}

func TestOverrideDegraded(t *testing.T) {
	d := New()
	d.Register("ok", fakePing{})
	d.SetOverride("quarantine:users", Report{Status: StatusDegraded, Error: "quarantined"})

	reports := d.Check(context.Background())
	if Overall(reports) != StatusDegraded {
		t.Fatalf("expected degraded overall, got %s", Overall(reports))
	}

	d.SetOverride("quarantine:users", Report{})
	reports = d.Check(context.Background())
	if Overall(reports) != StatusHealthy {
		t.Fatal("expected healthy after clearing override")
	}
}
