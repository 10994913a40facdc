package relational

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// Sink implements sink.Sink for a PostgreSQL-family relational
// warehouse, per spec.md §4.6's "one transaction per batch" protocol.
type Sink struct {
	name   string
	cfg    Config
	mapper validate.Mapper
	pool   *Pool
	log    *log.Entry
}

// New constructs a relational Sink. name is the destination identifier
// used in offset keys and metrics (spec.md §6's destination enum).
func New(name string, cfg Config) *Sink {
	return &Sink{
		name:   name,
		cfg:    cfg,
		mapper: validate.NewRelationalMapper(),
		log:    log.WithFields(log.Fields{"component": "sink.relational", "destination": name}),
	}
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, sink.DefaultConnectTimeout)
	defer cancel()
	pool, err := connectPool(connectCtx, s.cfg)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}

func (s *Sink) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Sink) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("relational: not connected")
	}
	return errors.Wrap(s.pool.Ping(ctx), "relational: health check")
}

// WriteBatch upserts every event in batch and advances the offset row in
// one transaction, per spec.md §4.6. A failure rolls back the whole
// batch so the caller's retry policy (C7) can re-execute it wholesale.
func (s *Sink) WriteBatch(ctx context.Context, batch sink.Batch, current offset.Offset) (sink.WriteResult, error) {
	if s.pool == nil {
		return sink.WriteResult{}, errors.New("relational: not connected")
	}
	if len(batch.Events) == 0 {
		return sink.WriteResult{Committed: true, Offset: current}, nil
	}

	statementCtx, cancel := context.WithTimeout(ctx, sink.DefaultStatementTimeout)
	defer cancel()

	tx, err := s.pool.Begin(statementCtx)
	if err != nil {
		return sink.WriteResult{}, errors.Wrap(err, "relational: begin transaction")
	}
	defer tx.Rollback(statementCtx)

	var lastTimestamp int64
	for _, ev := range batch.Events {
		var sql string
		var args []any
		if ev.IsDelete() {
			sql, args = DeleteStatement(ev)
		} else {
			sql, args = UpsertStatement(ev)
		}
		if _, err := tx.Exec(statementCtx, sql, args...); err != nil {
			return sink.WriteResult{}, errors.Wrapf(err, "relational: write event %s", ev.ID())
		}
		lastTimestamp = ev.SourceTimestampMicros()
	}

	next, advanced := offset.Advance(
		current,
		batch.UpToToken,
		lastTimestamp,
		int64(len(batch.Events)),
		time.Now(),
	)
	if advanced {
		// The last element of offset.Args is the columnar version column,
		// which RelationalUpsertSQL has no placeholder for.
		args := offset.Args(next)
		if _, err := tx.Exec(statementCtx, offset.RelationalUpsertSQL, args[:len(args)-1]...); err != nil {
			return sink.WriteResult{}, errors.Wrap(err, "relational: advance offset")
		}
	}

	if err := tx.Commit(statementCtx); err != nil {
		return sink.WriteResult{}, errors.Wrap(err, "relational: commit batch")
	}

	if advanced {
		return sink.WriteResult{Committed: true, Offset: next}, nil
	}
	return sink.WriteResult{Committed: true, Offset: current}, nil
}

// ApplySchemaChange issues DDL for change using this sink's mapper, per
// spec.md §4.6.
func (s *Sink) ApplySchemaChange(ctx context.Context, change schema.Change) error {
	table := ident.NewTable(ident.New(change.Keyspace), ident.New(change.Table))
	stmts, err := ddlStatements(table, change, s.mapper)
	if err != nil {
		return err
	}
	if err := s.ExecDDL(ctx, stmts); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{
		"keyspace": change.Keyspace,
		"table":    change.Table,
		"columns":  len(change.Columns),
	}).Info("applied schema change")
	return nil
}

// ExecDDL runs each statement in order against this sink's pool. It is
// exported so the time-series sink, which embeds Sink and reuses its
// pool, can apply its own overridden DDL statements through the same
// connection.
func (s *Sink) ExecDDL(ctx context.Context, stmts []string) error {
	statementCtx, cancel := context.WithTimeout(ctx, sink.DefaultStatementTimeout)
	defer cancel()
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(statementCtx, stmt); err != nil {
			return errors.Wrapf(err, "relational: apply DDL %q", stmt)
		}
	}
	return nil
}

// Compat exposes the mapper's widening rules to the schema monitor, per
// spec.md §4.2.
func (s *Sink) Compat() schema.TypeCompatibilityChecker { return s.mapper }

// Pool returns the sink's already-open connection pool, for callers (the
// orchestrator's schema catalog source) that need direct SQL access
// without opening a second connection.
func (s *Sink) Pool() *Pool { return s.pool }
