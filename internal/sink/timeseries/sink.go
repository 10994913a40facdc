// Package timeseries implements the C6 time-series warehouse sink: a
// TimescaleDB-flavored destination that derives from the relational
// sink by embedding it and overriding only the type mapper and
// schema-change DDL, per spec.md §4.5/§4.6's "derives by inheritance
// from the relational one."
package timeseries

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink/relational"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// TimeColumn names the event column treated as the hypertable's time
// dimension. Tables bootstrapped for this destination must partition on
// this column (outside this package's scope; see spec.md §1's
// "destination schema bootstrap DDL" non-goal).
const TimeColumn = "source_timestamp"

// Sink wraps relational.Sink, reusing its pgx pool type and batch
// transaction protocol wholesale, and only substituting the
// time-series mapper and DDL statements.
type Sink struct {
	*relational.Sink
	mapper validate.Mapper
	log    *log.Entry
}

// New constructs a time-series Sink over the same Config shape as the
// relational destination (it is wire-compatible Postgres).
func New(name string, cfg relational.Config) *Sink {
	return &Sink{
		Sink:   relational.New(name, cfg),
		mapper: validate.NewTimeSeriesMapper(),
		log:    log.WithFields(log.Fields{"component": "sink.timeseries", "destination": name}),
	}
}

// ApplySchemaChange overrides the embedded relational behavior: it uses
// the time-series mapper (whose timestamp override prefers the
// timezone-aware form) to render the same add/drop/alter DDL shapes.
func (s *Sink) ApplySchemaChange(ctx context.Context, change schema.Change) error {
	table := ident.NewTable(ident.New(change.Keyspace), ident.New(change.Table))
	stmts, err := timeSeriesDDL(table, change, s.mapper)
	if err != nil {
		return err
	}
	if err := s.Sink.ExecDDL(ctx, stmts); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{
		"keyspace": change.Keyspace,
		"table":    change.Table,
		"columns":  len(change.Columns),
	}).Info("applied schema change")
	return nil
}

// timeSeriesDDL mirrors relational's ddlStatements shape but resolves
// types through the time-series mapper, so the timestamp override takes
// effect for both ADD and ALTER TYPE.
func timeSeriesDDL(table ident.Table, change schema.Change, mapper validate.Mapper) ([]string, error) {
	stmts := make([]string, 0, len(change.Columns))
	for _, c := range change.Columns {
		col := ident.New(c.Column).Quoted(relational.Quote)
		switch c.Op {
		case schema.OpDrop:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table.Qualified(relational.Quote), col))
		case schema.OpAdd:
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return nil, errors.Errorf("timeseries: no mapping for added column %q of type %q", c.Column, c.NewType)
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table.Qualified(relational.Quote), col, destType))
		case schema.OpAlterType:
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return nil, errors.Errorf("timeseries: no mapping for altered column %q of type %q", c.Column, c.NewType)
			}
			stmts = append(stmts, fmt.Sprintf(
				"ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
				table.Qualified(relational.Quote), col, destType, col, destType,
			))
		}
	}
	return stmts, nil
}

// WriteBatch reuses the relational transaction protocol unchanged — the
// time-series destination's only divergence is in its type mapping and
// DDL, not its write path.
func (s *Sink) WriteBatch(ctx context.Context, batch sink.Batch, current offset.Offset) (sink.WriteResult, error) {
	return s.Sink.WriteBatch(ctx, batch, current)
}

// Compat exposes the time-series mapper's widening rules to the schema
// monitor, overriding the embedded relational Sink's.
func (s *Sink) Compat() schema.TypeCompatibilityChecker { return s.mapper }
