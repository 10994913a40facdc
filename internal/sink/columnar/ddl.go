package columnar

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/ident"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// MaxConcurrentRewrites bounds how many narrowing-alter table rewrites
// may run at once across all tables, per spec.md §4.6's "bounded
// concurrency, non-blocking to other tables."
const MaxConcurrentRewrites = 1

// rewriteSemaphore gates narrowing-alter rewrites process-wide.
var rewriteSemaphore = make(chan struct{}, MaxConcurrentRewrites)

// Querier is the subset of clickhouse.Conn this package needs, kept
// narrow so statement building and DDL application can be unit tested
// without a live server.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ApplyDDL issues add/drop/alter DDL for change, using mapper for
// destination types. Add and drop translate directly to ALTER TABLE
// statements; a narrowing alter-type instead triggers a guarded
// CREATE TABLE ... AS SELECT rewrite plus an atomic rename, bounded by
// rewriteSemaphore, per spec.md §4.6.
func ApplyDDL(ctx context.Context, q Querier, change schema.Change, mapper validate.Mapper) error {
	table := ident.NewTable(ident.New(change.Keyspace), ident.New(change.Table))

	for _, c := range change.Columns {
		switch c.Op {
		case schema.OpDrop:
			stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table.Qualified(Quote), ident.New(c.Column).Quoted(Quote))
			if err := q.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "columnar: drop column %q", c.Column)
			}
		case schema.OpAdd:
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return errors.Errorf("columnar: no mapping for added column %q of type %q", c.Column, c.NewType)
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table.Qualified(Quote), ident.New(c.Column).Quoted(Quote), destType)
			if err := q.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "columnar: add column %q", c.Column)
			}
		case schema.OpAlterType:
			if c.Compatibility == schema.Incompatible {
				if err := rewriteTableForNarrowingAlter(ctx, q, table, c, mapper); err != nil {
					return err
				}
				continue
			}
			destType, ok := mapper.MapType(c.NewType)
			if !ok {
				return errors.Errorf("columnar: no mapping for altered column %q of type %q", c.Column, c.NewType)
			}
			stmt := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", table.Qualified(Quote), ident.New(c.Column).Quoted(Quote), destType)
			if err := q.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "columnar: alter column %q", c.Column)
			}
		}
	}
	return nil
}

// rewriteTableForNarrowingAlter emulates a narrowing type change with a
// guarded CREATE TABLE ... AS SELECT rewrite and an atomic rename,
// bounded by MaxConcurrentRewrites so one table's rewrite cannot starve
// others, per spec.md §4.6.
func rewriteTableForNarrowingAlter(ctx context.Context, q Querier, table ident.Table, c schema.ColumnChange, mapper validate.Mapper) error {
	select {
	case rewriteSemaphore <- struct{}{}:
		defer func() { <-rewriteSemaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	destType, ok := mapper.MapType(c.NewType)
	if !ok {
		return errors.Errorf("columnar: no mapping for narrowed column %q of type %q", c.Column, c.NewType)
	}

	staging := ident.NewTable(table.Keyspace, ident.New(table.Name.Raw()+"_rewrite"))
	col := ident.New(c.Column).Quoted(Quote)

	createStmt := fmt.Sprintf(
		"CREATE TABLE %s AS %s",
		staging.Qualified(Quote), table.Qualified(Quote),
	)
	if err := q.Exec(ctx, createStmt); err != nil {
		return errors.Wrap(err, "columnar: create rewrite staging table")
	}

	modifyStmt := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", staging.Qualified(Quote), col, destType)
	if err := q.Exec(ctx, modifyStmt); err != nil {
		return errors.Wrap(err, "columnar: modify staging column type")
	}

	insertStmt := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", staging.Qualified(Quote), table.Qualified(Quote))
	if err := q.Exec(ctx, insertStmt); err != nil {
		return errors.Wrap(err, "columnar: copy rows into rewrite staging table")
	}

	renameStmt := fmt.Sprintf(
		"EXCHANGE TABLES %s AND %s",
		table.Qualified(Quote), staging.Qualified(Quote),
	)
	if err := q.Exec(ctx, renameStmt); err != nil {
		return errors.Wrap(err, "columnar: exchange rewritten table into place")
	}

	dropStmt := fmt.Sprintf("DROP TABLE %s", staging.Qualified(Quote))
	return errors.Wrap(q.Exec(ctx, dropStmt), "columnar: drop old table after rewrite")
}
