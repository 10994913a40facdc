package retry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
)

// Record is one DLQ entry, laid out per spec.md §6's DLQ file format.
type Record struct {
	DLQID          string          `json:"dlqId"`
	OriginalEvent  json.RawMessage `json:"originalEvent"`
	Destination    string          `json:"destination"`
	ErrorCategory  string          `json:"errorCategory"`
	ErrorMessage   string          `json:"errorMessage"`
	RetryCount     int             `json:"retryCount"`
	FirstFailureAt time.Time       `json:"firstFailureAt"`
	DLQWrittenAt   time.Time       `json:"dlqWrittenAt"`
}

// serializedEvent is the wire shape of an Event inside a DLQ record. It
// mirrors the event package's public accessors rather than depending on
// its internal representation.
type serializedEvent struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	Keyspace      string         `json:"keyspace"`
	Table         string         `json:"table"`
	PartitionKey  []event.Column `json:"partitionKey"`
	ClusteringKey []event.Column `json:"clusteringKey,omitempty"`
	Columns       []event.Column `json:"columns"`
	SourceTSMic   int64          `json:"sourceTimestampMicros"`
}

func marshalEvent(ev *event.Event) (json.RawMessage, error) {
	s := serializedEvent{
		ID:            ev.ID(),
		Kind:          ev.Kind().String(),
		Keyspace:      ev.Keyspace(),
		Table:         ev.Table(),
		PartitionKey:  ev.PartitionKey(),
		ClusteringKey: ev.ClusteringKey(),
		Columns:       ev.Columns(),
		SourceTSMic:   ev.SourceTimestampMicros(),
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "dlq: marshal event")
	}
	return buf, nil
}

// DLQ is the append-only dead-letter log described in spec.md §4.7.
// Files are partitioned by wall-clock day, named
// failed_events_YYYY-MM-DD.jsonl.
type DLQ struct {
	dir string

	mu       sync.Mutex
	openDay  string
	openFile *os.File
	writer   *bufio.Writer
}

// NewDLQ constructs a DLQ rooted at dir, creating it if necessary.
func NewDLQ(dir string) (*DLQ, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "dlq: create directory")
	}
	return &DLQ{dir: dir}, nil
}

// Write appends one record for ev to today's DLQ file and fsyncs before
// returning, since "writing a DLQ record is the acknowledgement of
// giving up on that event" per spec.md §4.7 — the offset manager must
// not advance past it until this call returns successfully.
func (d *DLQ) Write(ev *event.Event, destination string, category Category, cause error, retryCount int, firstFailureAt time.Time) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return err
	}

	rec := Record{
		DLQID:          uuid.NewString(),
		OriginalEvent:  payload,
		Destination:    destination,
		ErrorCategory:  category.String(),
		ErrorMessage:   cause.Error(),
		RetryCount:     retryCount,
		FirstFailureAt: firstFailureAt,
		DLQWrittenAt:   time.Now(),
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "dlq: marshal record")
	}
	line = append(line, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureOpenLocked(rec.DLQWrittenAt); err != nil {
		return err
	}
	if _, err := d.writer.Write(line); err != nil {
		return errors.Wrap(err, "dlq: write record")
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, "dlq: flush record")
	}
	return errors.Wrap(d.openFile.Sync(), "dlq: fsync record")
}

func (d *DLQ) ensureOpenLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if d.openFile != nil && d.openDay == day {
		return nil
	}
	if d.openFile != nil {
		d.writer.Flush()
		d.openFile.Close()
	}

	path := filepath.Join(d.dir, "failed_events_"+day+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "dlq: open day file")
	}
	d.openFile = f
	d.openDay = day
	d.writer = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the currently open day file, if any.
func (d *DLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openFile == nil {
		return nil
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrap(err, "dlq: flush on close")
	}
	err := d.openFile.Close()
	d.openFile = nil
	return errors.Wrap(err, "dlq: close")
}
