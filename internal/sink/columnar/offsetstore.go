package columnar

import (
	"context"

	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
)

// ReadAll implements offset.Store/sink.OffsetReader against the
// ClickHouse-family offsets table, collapsing to the latest version per
// partition via FINAL, per spec.md §4.8.
func (s *Sink) ReadAll(ctx context.Context, keyspace, table, destination string) ([]offset.Offset, error) {
	if s.conn == nil {
		return nil, errors.New("columnar: not connected")
	}
	rows, err := s.conn.Query(ctx, offset.ColumnarSelectSQL, table, keyspace, destination)
	if err != nil {
		return nil, errors.Wrap(err, "columnar: read offsets")
	}
	defer rows.Close()

	var out []offset.Offset
	for rows.Next() {
		var o offset.Offset
		if err := rows.Scan(&o.Key.PartitionID, &o.Token.File, &o.Token.Position,
			&o.LastEventTimestamp, &o.LastCommittedAt, &o.EventsReplicatedCount); err != nil {
			return nil, errors.Wrap(err, "columnar: scan offset row")
		}
		o.Key.Table = table
		o.Key.Keyspace = keyspace
		o.Key.Destination = destination
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "columnar: iterate offset rows")
	}
	return out, nil
}
