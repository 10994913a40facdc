package columnar

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// Config holds the ClickHouse connection parameters, per spec.md §6's
// per-destination {host, port, database, credentials}.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (cfg Config) options() *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	}
}

// connAdapter satisfies the narrow Querier interface used by ApplyDDL
// over a driver.Conn.
type connAdapter struct {
	conn driver.Conn
}

func (c connAdapter) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

// Sink implements sink.Sink for a ClickHouse-family columnar analytic
// store, per spec.md §4.6: no multi-statement transactions, a
// deduplicating ReplacingMergeTree data table, and a separate
// deduplicating offsets table written after the data batch.
type Sink struct {
	name   string
	cfg    Config
	mapper validate.Mapper
	conn   driver.Conn
	log    *log.Entry
}

// New constructs a columnar Sink.
func New(name string, cfg Config) *Sink {
	return &Sink{
		name:   name,
		cfg:    cfg,
		mapper: validate.NewColumnarMapper(),
		log:    log.WithFields(log.Fields{"component": "sink.columnar", "destination": name}),
	}
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, sink.DefaultConnectTimeout)
	defer cancel()
	conn, err := clickhouse.Open(s.cfg.options())
	if err != nil {
		return errors.Wrap(err, "columnar: open connection")
	}
	if err := conn.Ping(connectCtx); err != nil {
		return errors.Wrap(err, "columnar: ping")
	}
	s.conn = conn
	return nil
}

func (s *Sink) Close(ctx context.Context) error {
	if s.conn != nil {
		return errors.Wrap(s.conn.Close(), "columnar: close")
	}
	return nil
}

func (s *Sink) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("columnar: not connected")
	}
	return errors.Wrap(s.conn.Ping(ctx), "columnar: health check")
}

// WriteBatch inserts every event's row, then inserts the offset row,
// per spec.md §4.6's "insert data batch, then insert offset row"
// protocol. Because ClickHouse has no cross-statement transaction here,
// acknowledgement is defined as "both inserts returned OK"; a failure
// between the two leaves a small gap the deduplicating engine converges
// over, per spec.md §4.8.
func (s *Sink) WriteBatch(ctx context.Context, batch sink.Batch, current offset.Offset) (sink.WriteResult, error) {
	if s.conn == nil {
		return sink.WriteResult{}, errors.New("columnar: not connected")
	}
	if len(batch.Events) == 0 {
		return sink.WriteResult{Committed: true, Offset: current}, nil
	}

	statementCtx, cancel := context.WithTimeout(ctx, sink.DefaultStatementTimeout)
	defer cancel()

	var lastTimestamp int64
	for _, ev := range batch.Events {
		stmt, args := InsertStatement(ev)
		if err := s.conn.Exec(statementCtx, stmt, args...); err != nil {
			return sink.WriteResult{}, errors.Wrapf(err, "columnar: insert event %s", ev.ID())
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
		args := offset.Args(next)
		if err := s.conn.Exec(statementCtx, offset.ColumnarInsertSQL, args...); err != nil {
			return sink.WriteResult{}, errors.Wrap(err, "columnar: insert offset row")
		}
		return sink.WriteResult{Committed: true, Offset: next}, nil
	}
	return sink.WriteResult{Committed: true, Offset: current}, nil
}

func (s *Sink) ApplySchemaChange(ctx context.Context, change schema.Change) error {
	if err := ApplyDDL(ctx, connAdapter{conn: s.conn}, change, s.mapper); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{
		"keyspace": change.Keyspace,
		"table":    change.Table,
		"columns":  len(change.Columns),
	}).Info("applied schema change")
	return nil
}

// Compat exposes the mapper's widening rules to the schema monitor, per
// spec.md §4.2.
func (s *Sink) Compat() schema.TypeCompatibilityChecker { return s.mapper }

// Conn returns the sink's already-open connection, for callers (the
// orchestrator's schema catalog source) that need direct SQL access
// without opening a second connection.
func (s *Sink) Conn() driver.Conn { return s.conn }
