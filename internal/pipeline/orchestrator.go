package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/commitlog"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/mask"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/retry"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/metrics"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/stopper"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// Table names one (keyspace, table) the orchestrator tails and
// replicates, per spec.md §6's table-list configuration.
type Table struct {
	Keyspace string
	Name     string
}

// destinationBinding pairs one Destination with the validator that
// checks events against this destination's mapper before they are
// enqueued, plus the schema.Monitor tracking this destination's view of
// the tables it replicates.
type destinationBinding struct {
	dest      *Destination
	validator *validate.Validator
	monitor   *schema.Monitor
}

// Orchestrator composes the commit-log reader, masking transform, one
// validator+monitor+Destination per configured destination, and the
// schema-change quiescence and shutdown protocols, per spec.md §4.9.
type Orchestrator struct {
	Reader *commitlog.Reader
	Masker *mask.Masker
	Tables []Table
	Log    *log.Entry

	bindings []*destinationBinding
}

// New constructs an Orchestrator with no destinations bound yet; call
// AddDestination for each configured sink before Run.
func New(reader *commitlog.Reader, masker *mask.Masker, tables []Table) *Orchestrator {
	return &Orchestrator{
		Reader: reader,
		Masker: masker,
		Tables: tables,
		Log:    log.WithField("component", "pipeline.Orchestrator"),
	}
}

// AddDestination binds a Destination into the fan-out, along with the
// schema.CatalogSource it should poll to classify that destination's own
// schema-change compatibility (spec.md §4.2 — each destination's mapper
// has its own widening rules, so each gets its own Monitor).
func (o *Orchestrator) AddDestination(dest *Destination, mapper validate.Mapper, source schema.CatalogSource, pollOpts ...schema.Option) {
	opts := append([]schema.Option{schema.WithTypeCompatibilityChecker(mapper)}, pollOpts...)
	monitor := schema.New(source, opts...)
	o.bindings = append(o.bindings, &destinationBinding{
		dest:      dest,
		validator: validate.New(mapper),
		monitor:   monitor,
	})
}

// seedOffsets loads every bound destination's persisted offset rows for
// every tracked table, per spec.md §4.8's "read on startup," and returns
// a resumption token the reader can safely skip forward to: the earliest
// token any destination has not yet passed for any tracked table. If any
// destination has no persisted row yet for some table — a fresh
// destination, or one whose sink does not implement sink.OffsetReader —
// it still needs the full commit log, so the returned token is nil and
// the reader resumes from the oldest available segment.
func (o *Orchestrator) seedOffsets(ctx context.Context) *cltoken.Token {
	canSkip := true
	var minToken *cltoken.Token

	for _, b := range o.bindings {
		reader, ok := b.dest.Sink.(sink.OffsetReader)
		if !ok {
			canSkip = false
			continue
		}
		for _, t := range o.Tables {
			rows, err := reader.ReadAll(ctx, t.Keyspace, t.Name, b.dest.Name)
			if err != nil {
				o.Log.WithError(err).WithFields(log.Fields{
					"destination": b.dest.Name, "keyspace": t.Keyspace, "table": t.Name,
				}).Warn("could not read persisted offsets; this destination will replay its tables from the start")
				canSkip = false
				continue
			}
			if len(rows) == 0 {
				canSkip = false
				continue
			}
			b.dest.SeedOffsets(rows)
			for _, row := range rows {
				if minToken == nil || cltoken.Less(row.Token, *minToken) {
					tok := row.Token
					minToken = &tok
				}
			}
		}
	}

	if !canSkip {
		return nil
	}
	return minToken
}

// Run starts every destination worker pool, every schema monitor, the
// quiescence watchers, and the read/transform/fan-out loop, all under the
// shared stopper group. Run blocks until s is stopped or the reader's
// context is canceled.
func (o *Orchestrator) Run(s *stopper.Context) error {
	for _, b := range o.bindings {
		b.dest.Run(s)
		bind := b
		s.Go(func() error { return bind.monitor.Run(s) })
		s.Go(func() error { o.watchSchemaChanges(s, bind); return nil })

		for _, t := range o.Tables {
			if err := bind.monitor.Track(s, t.Keyspace, t.Name); err != nil {
				o.Log.WithError(err).WithFields(log.Fields{
					"keyspace": t.Keyspace, "table": t.Name,
				}).Warn("could not fetch initial schema snapshot; validation will treat this table as schemaless until the next poll")
			}
		}
	}

	startToken := o.seedOffsets(s)
	results, err := o.Reader.Open(s, startToken)
	if err != nil {
		return err
	}

	for {
		select {
		case <-s.Stopping():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			o.handleResult(s, res)
		}
	}
}

// handleResult masks and validates one commit-log Result against every
// bound destination and fans it out, per spec.md §4.3-§4.6.
func (o *Orchestrator) handleResult(s *stopper.Context, res commitlog.Result) {
	if res.Skip != nil {
		o.Log.WithFields(log.Fields{
			"file": res.Skip.File, "position": res.Skip.Position, "reason": res.Skip.Reason,
		}).Warn("skipped malformed commit-log frame")
		return
	}

	masked := o.Masker.Mask(res.Event)

	for _, b := range o.bindings {
		cached, _ := b.monitor.Current(masked.Keyspace(), masked.Table())
		if err := b.validator.Validate(masked, cached); err != nil {
			b.dest.Log.WithError(err).WithField("event", masked.ID()).Warn("event rejected by validator, routing to DLQ")
			metrics.ErrorsTotal.WithLabelValues(b.dest.Name, "terminal").Inc()
			if werr := b.dest.DLQ.Write(masked, b.dest.Name, retry.Terminal, err, 0, time.Now()); werr != nil {
				b.dest.Log.WithError(werr).Error("fatal: DLQ write failed for a validation rejection")
			}
			continue
		}
		if err := b.dest.Enqueue(s, masked, res.Token); err != nil {
			b.dest.Log.WithError(err).Warn("enqueue aborted, orchestrator is shutting down")
		}
	}
}

// watchSchemaChanges applies DDL for one destination as its monitor
// reports changes, quiescing that table's enqueues first, per spec.md
// §4.9's schema-change protocol: pause intake, drain in-flight work,
// apply DDL, latch quarantine on failure, then resume.
func (o *Orchestrator) watchSchemaChanges(s *stopper.Context, b *destinationBinding) {
	for {
		select {
		case <-s.Stopping():
			return
		case change, ok := <-b.monitor.Changes():
			if !ok {
				return
			}
			o.applyChange(s, b, change)
		}
	}
}

func (o *Orchestrator) applyChange(s *stopper.Context, b *destinationBinding, change schema.Change) {
	drained := b.dest.Quiesce(change.Table, b.dest.Config.SchemaDrainTimeout)
	defer b.dest.Resume(change.Table)

	if !drained {
		b.dest.Log.WithFields(log.Fields{
			"keyspace": change.Keyspace, "table": change.Table,
		}).Warn("schema-change drain timed out; applying DDL with in-flight work still outstanding")
	}

	if err := b.dest.Sink.ApplySchemaChange(s, change); err != nil {
		b.dest.Log.WithError(err).WithFields(log.Fields{
			"keyspace": change.Keyspace, "table": change.Table,
		}).Error("schema change application failed; quarantining table")
		b.dest.quarantine.add(change.Keyspace, change.Table)
		metrics.ErrorsTotal.WithLabelValues(b.dest.Name, "quarantine").Inc()
		return
	}

	b.dest.Log.WithFields(log.Fields{
		"keyspace": change.Keyspace, "table": change.Table, "columns": len(change.Columns),
	}).Info("schema change applied")
}

// Shutdown performs the two-phase graceful shutdown described in
// spec.md §4.9: Stop first signals every worker to drain its current
// batch, then forces completion after deadline. Unacknowledged events at
// that point simply have their offsets unadvanced, to be replayed on the
// next run.
func (o *Orchestrator) Shutdown(s *stopper.Context, deadline time.Duration) {
	s.Stop(deadline)
	for _, b := range o.bindings {
		if err := b.dest.Sink.Close(context.Background()); err != nil {
			b.dest.Log.WithError(err).Warn("error closing sink during shutdown")
		}
	}
}
