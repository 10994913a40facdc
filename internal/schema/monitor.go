package schema

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/stopper"
)

// DefaultPollInterval is the schema poll cadence named in spec.md §6
// (schemaPollIntervalMs, default 30s).
const DefaultPollInterval = 30 * time.Second

// CatalogSource fetches the current schema for one (keyspace, table) from
// the source catalog. The monitor is source-agnostic; a concrete catalog
// query implementation is supplied by the caller.
type CatalogSource interface {
	FetchSnapshot(ctx context.Context, keyspace, table string) (*Snapshot, error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithPollInterval overrides the default poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) { m.pollInterval = d }
}

// WithTypeCompatibilityChecker installs the destination mapper's type
// compatibility rules, per spec.md §4.2.
func WithTypeCompatibilityChecker(c TypeCompatibilityChecker) Option {
	return func(m *Monitor) { m.compat = c }
}

// WithLogger overrides the logger used for lifecycle and change messages.
func WithLogger(l *log.Entry) Option {
	return func(m *Monitor) { m.log = l }
}

type subscription struct {
	key Key
	ch  chan Change
}

// Monitor polls a CatalogSource on a fixed cadence for each registered
// table, diffs successive snapshots, and emits SchemaChange notifications
// on its Changes channel, as specified in spec.md §4.2.
type Monitor struct {
	source       CatalogSource
	pollInterval time.Duration
	compat       TypeCompatibilityChecker
	log          *log.Entry

	mu        sync.RWMutex
	snapshots map[Key]*Snapshot
	watchers  map[Key][]chan Change

	changes chan Change
}

// New constructs a Monitor over the given catalog source.
func New(source CatalogSource, opts ...Option) *Monitor {
	m := &Monitor{
		source:       source,
		pollInterval: DefaultPollInterval,
		log:          log.WithField("component", "schema.Monitor"),
		snapshots:    make(map[Key]*Snapshot),
		watchers:     make(map[Key][]chan Change),
		changes:      make(chan Change, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Changes returns the channel that the orchestrator (C9) consumes
// SchemaChange notifications from, per spec.md §4.9.
func (m *Monitor) Changes() <-chan Change {
	return m.changes
}

// Track registers a (keyspace, table) pair for polling. It fetches an
// initial snapshot synchronously so that the first diff, if any, has a
// well-defined baseline, and establishes it as version 1, per spec.md
// §3's "first observation establishes version 1."
func (m *Monitor) Track(ctx context.Context, keyspace, table string) error {
	snap, err := m.source.FetchSnapshot(ctx, keyspace, table)
	if err != nil {
		return errors.Wrapf(err, "schema: initial fetch for %s.%s", keyspace, table)
	}
	snap.Version = 1
	key := Key{Keyspace: keyspace, Table: table}
	m.mu.Lock()
	m.snapshots[key] = snap
	m.mu.Unlock()
	return nil
}

// Current returns the most recently observed snapshot for a table, if any.
func (m *Monitor) Current(keyspace, table string) (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[Key{Keyspace: keyspace, Table: table}]
	return snap, ok
}

// Watch subscribes to Change notifications for one table, in addition to
// the aggregate Changes() feed. This is a supplemental, push-based
// convenience grounded on the teacher's types.Watcher API. The returned
// cancel function unregisters the subscription; callers must call it to
// avoid leaking the channel.
func (m *Monitor) Watch(keyspace, table string) (<-chan Change, func()) {
	key := Key{Keyspace: keyspace, Table: table}
	ch := make(chan Change, 8)

	m.mu.Lock()
	m.watchers[key] = append(m.watchers[key], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.watchers[key]
		for i, c := range subs {
			if c == ch {
				m.watchers[key] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, cancel
}

// Run polls every tracked table on the configured cadence until the
// stopper context is stopped. It is intended to be launched via
// stopper.Context.Go.
func (m *Monitor) Run(s *stopper.Context) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Stopping():
			return nil
		case <-ticker.C:
			m.pollAll(s)
		}
	}
}

func (m *Monitor) pollAll(ctx context.Context) {
	m.mu.RLock()
	keys := make([]Key, 0, len(m.snapshots))
	for k := range m.snapshots {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	for _, key := range keys {
		m.pollOne(ctx, key)
	}
}

func (m *Monitor) pollOne(ctx context.Context, key Key) {
	cur, err := m.source.FetchSnapshot(ctx, key.Keyspace, key.Table)
	if err != nil {
		m.log.WithError(err).WithFields(log.Fields{
			"keyspace": key.Keyspace,
			"table":    key.Table,
		}).Warn("schema poll failed")
		return
	}

	m.mu.Lock()
	old := m.snapshots[key]
	cols := diff(old, cur, m.compat)
	if cols != nil {
		cur.Version = old.Version + 1
		m.snapshots[key] = cur
	}
	watchers := append([]chan Change(nil), m.watchers[key]...)
	m.mu.Unlock()

	if cols == nil {
		return
	}

	change := Change{
		Keyspace:   key.Keyspace,
		Table:      key.Table,
		OldVersion: old.Version,
		NewVersion: cur.Version,
		Columns:    cols,
	}

	m.log.WithFields(log.Fields{
		"keyspace":   key.Keyspace,
		"table":      key.Table,
		"oldVersion": change.OldVersion,
		"newVersion": change.NewVersion,
		"columns":    len(cols),
	}).Info("schema change detected")

	select {
	case m.changes <- change:
	case <-ctx.Done():
		return
	}
	for _, w := range watchers {
		select {
		case w <- change:
		case <-ctx.Done():
			return
		default:
			m.log.WithFields(log.Fields{
				"keyspace": key.Keyspace,
				"table":    key.Table,
			}).Warn("watch subscriber too slow, dropping change notification")
		}
	}
}
