// Package catalog implements concrete schema.CatalogSource bindings: the
// source-database queries the schema monitor (component C3) polls on a
// fixed cadence to build a schema.Snapshot, per spec.md §4.2.
package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
)

// PostgresSource fetches schema.Snapshots from a Postgres-compatible
// source database's information_schema and pg_index catalogs. It
// implements schema.CatalogSource.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource wraps an existing pool. The caller owns the pool's
// lifecycle; PostgresSource never closes it.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// FetchSnapshot queries columns and key membership for one (keyspace,
// table) pair, where keyspace maps to the Postgres schema name.
func (s *PostgresSource) FetchSnapshot(ctx context.Context, keyspace, table string) (*schema.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, keyspace, table)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: fetch columns for %s.%s", keyspace, table)
	}
	defer rows.Close()

	var cols []schema.ColumnDef
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, errors.Wrap(err, "catalog: scan column row")
		}
		cols = append(cols, schema.ColumnDef{Name: name, SourceType: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "catalog: iterate column rows")
	}

	primaryKey, err := s.keyColumns(ctx, keyspace, table)
	if err != nil {
		return nil, err
	}
	for i, c := range cols {
		if primaryKey[c.Name] {
			cols[i].IsPartitionKey = true
		}
	}

	return &schema.Snapshot{Keyspace: keyspace, Table: table, Columns: cols}, nil
}

// keyColumns returns the set of column names participating in table's
// primary key, via pg_index.
func (s *PostgresSource) keyColumns(ctx context.Context, keyspace, table string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE i.indisprimary AND n.nspname = $1 AND c.relname = $2
	`, keyspace, table)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: fetch primary key for %s.%s", keyspace, table)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "catalog: scan key column row")
		}
		out[name] = true
	}
	return out, rows.Err()
}
