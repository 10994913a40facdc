package catalog

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
)

// ClickHouseSource fetches schema.Snapshots from a ClickHouse-compatible
// analytic store's system.columns table. It implements
// schema.CatalogSource for the columnar destination family.
type ClickHouseSource struct {
	conn driver.Conn
}

// NewClickHouseSource wraps an existing connection. The caller owns the
// connection's lifecycle.
func NewClickHouseSource(conn driver.Conn) *ClickHouseSource {
	return &ClickHouseSource{conn: conn}
}

// FetchSnapshot queries column names, types, and primary-key membership
// for one (keyspace, table) pair, where keyspace maps to the ClickHouse
// database name.
func (s *ClickHouseSource) FetchSnapshot(ctx context.Context, keyspace, table string) (*schema.Snapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT name, type, is_in_primary_key
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position
	`, keyspace, table)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: fetch columns for %s.%s", keyspace, table)
	}
	defer rows.Close()

	var cols []schema.ColumnDef
	for rows.Next() {
		var name, dataType string
		var isKey uint8
		if err := rows.Scan(&name, &dataType, &isKey); err != nil {
			return nil, errors.Wrap(err, "catalog: scan column row")
		}
		cols = append(cols, schema.ColumnDef{Name: name, SourceType: dataType, IsPartitionKey: isKey != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "catalog: iterate column rows")
	}

	return &schema.Snapshot{Keyspace: keyspace, Table: table, Columns: cols}, nil
}
