package relational

import (
	"context"

	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
)

// ReadAll implements offset.Store/sink.OffsetReader: it returns every
// partition's persisted offset row for one (table, keyspace, destination)
// tuple, for the orchestrator to seed its in-memory offset cache on
// startup, per spec.md §4.8.
func (s *Sink) ReadAll(ctx context.Context, keyspace, table, destination string) ([]offset.Offset, error) {
	if s.pool == nil {
		return nil, errors.New("relational: not connected")
	}
	rows, err := s.pool.Query(ctx, offset.RelationalSelectSQL, table, keyspace, destination)
	if err != nil {
		return nil, errors.Wrap(err, "relational: read offsets")
	}
	defer rows.Close()

	var out []offset.Offset
	for rows.Next() {
		var o offset.Offset
		if err := rows.Scan(&o.Key.PartitionID, &o.Token.File, &o.Token.Position,
			&o.LastEventTimestamp, &o.LastCommittedAt, &o.EventsReplicatedCount); err != nil {
			return nil, errors.Wrap(err, "relational: scan offset row")
		}
		o.Key.Table = table
		o.Key.Keyspace = keyspace
		o.Key.Destination = destination
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "relational: iterate offset rows")
	}
	return out, nil
}
