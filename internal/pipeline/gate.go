package pipeline

import (
	"sync"
	"time"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/notify"
)

// tableGate coordinates schema-change quiescence within one Destination:
// Enqueue consults it to stall new events for a paused table, and the
// orchestrator uses it to learn when a table's in-flight work has
// drained before applying DDL, per spec.md §4.9. Pause state and
// in-flight counts are each kept in a notify.Var so waiters block on the
// change channel instead of polling.
type tableGate struct {
	mu       sync.Mutex
	paused   map[string]*notify.Var[bool]
	inFlight map[string]*notify.Var[int]
}

func newTableGate() *tableGate {
	return &tableGate{
		paused:   make(map[string]*notify.Var[bool]),
		inFlight: make(map[string]*notify.Var[int]),
	}
}

func (g *tableGate) pausedVar(table string) *notify.Var[bool] {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.paused[table]
	if !ok {
		v = notify.New(false)
		g.paused[table] = v
	}
	return v
}

func (g *tableGate) inFlightVar(table string) *notify.Var[int] {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.inFlight[table]
	if !ok {
		v = notify.New(0)
		g.inFlight[table] = v
	}
	return v
}

func (g *tableGate) pause(table string)  { g.pausedVar(table).Set(true) }
func (g *tableGate) resume(table string) { g.pausedVar(table).Set(false) }

func (g *tableGate) isPaused(table string) bool {
	v, _ := g.pausedVar(table).Get()
	return v
}

func (g *tableGate) add(table string, delta int) {
	g.inFlightVar(table).Update(func(n int) int { return n + delta })
}

// waitUnpaused blocks until table is not paused, ctx is done, or the
// stopper is stopping.
func (g *tableGate) waitUnpaused(ctx waitContext, table string) error {
	v := g.pausedVar(table)
	for {
		val, changed := v.Get()
		if !val {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitContext is the subset of context.Context that waitUnpaused needs,
// satisfied by both context.Context and *stopper.Context.
type waitContext interface {
	Done() <-chan struct{}
	Err() error
}

// Quiesce pauses new enqueues for table and blocks until its in-flight
// count reaches zero or timeout elapses, returning whether it drained in
// time. Callers must Resume(table) once DDL has been applied, whether or
// not Quiesce reported a clean drain.
func (d *Destination) Quiesce(table string, timeout time.Duration) bool {
	d.gate.pause(table)

	v := d.gate.inFlightVar(table)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		n, changed := v.Get()
		if n == 0 {
			return true
		}
		select {
		case <-changed:
		case <-timer.C:
			return false
		}
	}
}

// Resume lifts the pause latched by Quiesce.
func (d *Destination) Resume(table string) {
	d.gate.resume(table)
}
