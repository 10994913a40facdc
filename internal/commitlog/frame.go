// Package commitlog tails the source database's commit-log directory and
// decodes binary frames into event.Event values, as specified in
// spec.md §4.1 (component C2).
package commitlog

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
)

// MaxFrameBytes bounds a single frame's payload size. A declared length
// beyond this is treated as stream corruption rather than a legitimate,
// if unusually large, mutation.
const MaxFrameBytes = 64 << 20 // 64 MiB

// frameColumn is the wire representation of an event.Column.
type frameColumn struct {
	Name       string `json:"name"`
	Value      any    `json:"value"`
	SourceType string `json:"sourceType"`
}

// frameRecord is the wire representation of one commit-log frame. Frames
// are length-prefixed JSON: a 4-byte little-endian uint32 giving the byte
// length of the JSON payload that follows. The explicit length makes
// frame boundaries recoverable even when the payload itself is corrupt,
// which is what lets the reader "advance past" a malformed frame instead
// of losing its place in the file (spec.md §4.1).
type frameRecord struct {
	Kind                  string        `json:"kind"`
	Keyspace              string        `json:"keyspace"`
	Table                 string        `json:"table"`
	PartitionKey          []frameColumn `json:"partitionKey"`
	ClusteringKey         []frameColumn `json:"clusteringKey,omitempty"`
	Columns               []frameColumn `json:"columns,omitempty"`
	SourceTimestampMicros int64         `json:"sourceTimestampMicros"`
	TTLSeconds            int64         `json:"ttlSeconds,omitempty"`
}

func kindToWire(k event.Kind) string { return k.String() }

func wireToKind(s string) (event.Kind, error) {
	switch s {
	case "insert":
		return event.Insert, nil
	case "update":
		return event.Update, nil
	case "delete":
		return event.Delete, nil
	default:
		return 0, errors.Errorf("commitlog: unknown mutation kind %q", s)
	}
}

func toFrameColumns(cols []event.Column) []frameColumn {
	out := make([]frameColumn, len(cols))
	for i, c := range cols {
		out[i] = frameColumn{Name: c.Name, Value: c.Value, SourceType: c.SourceType}
	}
	return out
}

func fromFrameColumns(cols []frameColumn) []event.Column {
	out := make([]event.Column, len(cols))
	for i, c := range cols {
		out[i] = event.Column{Name: c.Name, Value: c.Value, SourceType: c.SourceType}
	}
	return out
}

// EncodeFrame serializes ev as a length-prefixed frame, suitable for
// appending to a commit-log file (used by tests to build fixtures and by
// the round-trip property in spec.md §8).
func EncodeFrame(ev *event.Event) ([]byte, error) {
	rec := frameRecord{
		Kind:                  kindToWire(ev.Kind()),
		Keyspace:              ev.Keyspace(),
		Table:                 ev.Table(),
		PartitionKey:          toFrameColumns(ev.PartitionKey()),
		ClusteringKey:         toFrameColumns(ev.ClusteringKey()),
		Columns:               toFrameColumns(ev.Columns()),
		SourceTimestampMicros: ev.SourceTimestampMicros(),
		TTLSeconds:            ev.TTLSeconds(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "commitlog: encode frame")
	}
	if len(payload) > MaxFrameBytes {
		return nil, errors.Errorf("commitlog: frame of %d bytes exceeds max %d", len(payload), MaxFrameBytes)
	}
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf, nil
}

// decodeRecord turns a frameRecord plus a capture time into an
// event.Event, surfacing any invariant violation as an error so the
// caller can emit a ParseSkip.
func decodeRecord(rec frameRecord, captureTime time.Time) (*event.Event, error) {
	kind, err := wireToKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	return event.New(event.Params{
		Kind:                  kind,
		Keyspace:              rec.Keyspace,
		Table:                 rec.Table,
		PartitionKey:          fromFrameColumns(rec.PartitionKey),
		ClusteringKey:         fromFrameColumns(rec.ClusteringKey),
		Columns:               fromFrameColumns(rec.Columns),
		SourceTimestampMicros: rec.SourceTimestampMicros,
		TTLSeconds:            rec.TTLSeconds,
		CaptureTime:           captureTime,
	})
}

// DecodeFrame parses a single length-prefixed frame from the front of
// buf, returning the Event, the number of bytes consumed, and an error.
// A nil Event with a non-nil error but a positive consumed count
// indicates a malformed-but-recoverable frame: the caller should skip
// exactly `consumed` bytes and continue. errIncompleteFrame indicates
// buf does not yet contain a full frame and the caller should wait for
// more bytes rather than treat this as a parse error.
func DecodeFrame(buf []byte, captureTime time.Time) (ev *event.Event, consumed int, err error) {
	if len(buf) < 4 {
		return nil, 0, errIncompleteFrame
	}
	length := binary.LittleEndian.Uint32(buf)
	if length > MaxFrameBytes {
		// Corrupt length: we cannot trust framing at all. Advance by a
		// single byte so the caller can attempt to resynchronize.
		return nil, 1, errors.Errorf("commitlog: implausible frame length %d", length)
	}
	total := 4 + int(length)
	if len(buf) < total {
		return nil, 0, errIncompleteFrame
	}

	payload := buf[4:total]
	var rec frameRecord
	if err := json.Unmarshal(bytes.TrimRight(payload, "\x00"), &rec); err != nil {
		return nil, total, errors.Wrap(err, "commitlog: malformed frame payload")
	}
	decoded, err := decodeRecord(rec, captureTime)
	if err != nil {
		return nil, total, err
	}
	return decoded, total, nil
}

// errIncompleteFrame is a sentinel, not a parse error: the reader should
// wait for more bytes to arrive and retry rather than emit a ParseSkip.
var errIncompleteFrame = errors.New("commitlog: incomplete frame")

// IsIncomplete reports whether err indicates that buf simply does not
// yet contain a full frame.
func IsIncomplete(err error) bool { return errors.Is(err, errIncompleteFrame) }
