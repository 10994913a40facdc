package offset

import "fmt"

// RelationalUpsertSQL returns the parameterized upsert statement a
// relational (or time-series) sink embeds in its batch transaction to
// advance an offset row, per spec.md §6's offset DML pattern. Positional
// placeholders follow pgx's $n convention ($1 table_name ... in the
// order listed).
const RelationalUpsertSQL = `
INSERT INTO cdc_offsets (
	table_name, keyspace, partition_id, destination,
	commitlog_file, commitlog_position,
	last_event_timestamp_micros, last_committed_at, events_replicated_count
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (table_name, keyspace, partition_id, destination) DO UPDATE SET
	commitlog_file = EXCLUDED.commitlog_file,
	commitlog_position = EXCLUDED.commitlog_position,
	last_event_timestamp_micros = GREATEST(cdc_offsets.last_event_timestamp_micros, EXCLUDED.last_event_timestamp_micros),
	last_committed_at = EXCLUDED.last_committed_at,
	events_replicated_count = EXCLUDED.events_replicated_count
WHERE (EXCLUDED.commitlog_file, EXCLUDED.commitlog_position) > (cdc_offsets.commitlog_file, cdc_offsets.commitlog_position)
`

// RelationalSelectSQL returns the statement a relational sink uses to
// read every partition's offset row for one (table, keyspace,
// destination) tuple on startup, per spec.md §4.8's read operation.
const RelationalSelectSQL = `
SELECT partition_id, commitlog_file, commitlog_position, last_event_timestamp_micros,
       last_committed_at, events_replicated_count
FROM cdc_offsets
WHERE table_name = $1 AND keyspace = $2 AND destination = $3
`

// ColumnarSelectSQL returns the statement a columnar sink uses to read
// every partition's offset row for one (table, keyspace, destination)
// tuple on startup. FINAL forces the ReplacingMergeTree engine to
// collapse to the latest version per partition before returning rows.
const ColumnarSelectSQL = `
SELECT partition_id, commitlog_file, commitlog_position, last_event_timestamp_micros,
       last_committed_at, events_replicated_count
FROM cdc_offsets FINAL
WHERE table_name = ? AND keyspace = ? AND destination = ?
`

// ColumnarInsertSQL returns the statement a columnar sink uses to record
// an offset in its separate deduplicating offsets table, per spec.md
// §4.6/§6. The engine's merge semantics make this an insert rather than
// an upsert; the version column provides eventual deduplication.
const ColumnarInsertSQL = `
INSERT INTO cdc_offsets (
	table_name, keyspace, partition_id, destination,
	commitlog_file, commitlog_position,
	last_event_timestamp_micros, last_committed_at, events_replicated_count, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Args returns the positional argument list for RelationalUpsertSQL /
// ColumnarInsertSQL in the declared column order, given a candidate
// offset to persist. The version argument (last element) is the columnar
// engine's dedup key and is ignored by relational sinks.
func Args(o Offset) []any {
	return []any{
		o.Key.Table, o.Key.Keyspace, o.Key.PartitionID, o.Key.Destination,
		o.Token.File, o.Token.Position,
		o.LastEventTimestamp, o.LastCommittedAt, o.EventsReplicatedCount,
		o.LastEventTimestamp,
	}
}

// String renders a Key into the destination-qualified log/error
// identifier used throughout sink logging.
func (k Key) String() string {
	return fmt.Sprintf("%s.%s[partition=%d]->%s", k.Keyspace, k.Table, k.PartitionID, k.Destination)
}
