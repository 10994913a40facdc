package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/offset"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/retry"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/metrics"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/stopper"
)

// queueEntry is one unit routed to a destination worker slot.
type queueEntry struct {
	ev    *event.Event
	token cltoken.Token
}

// Destination wires one sink into the orchestrator: its bounded queue
// Qdest[i], its workers[dest] worker slots, and the retry/DLQ policy
// applied to its batches, per spec.md §4.6/§4.7/§4.9.
type Destination struct {
	Name   string
	Sink   sink.Sink
	Config Config
	Policy retry.Policy
	DLQ    *retry.DLQ
	Log    *log.Entry

	queues     []chan queueEntry
	offsets    *offsetCache
	quarantine *quarantineSet
	gate       *tableGate
}

// NewDestination constructs a Destination with workers[dest] bounded
// queues, each sized per spec.md §4.9's "maxInflightBatches[i] *
// maxBatchSize."
func NewDestination(name string, s sink.Sink, cfg Config, policy retry.Policy, dlq *retry.DLQ) *Destination {
	queues := make([]chan queueEntry, cfg.WorkersPerDestination)
	for i := range queues {
		queues[i] = make(chan queueEntry, cfg.queueCapacity())
	}
	return &Destination{
		Name:       name,
		Sink:       s,
		Config:     cfg,
		Policy:     policy,
		DLQ:        dlq,
		Log:        log.WithFields(log.Fields{"component": "pipeline.Destination", "destination": name}),
		queues:     queues,
		offsets:    newOffsetCache(),
		quarantine: newQuarantineSet(),
		gate:       newTableGate(),
	}
}

// SeedOffsets loads persisted offset rows into this destination's cache
// before the read loop starts, per spec.md §4.8's "read on startup."
func (d *Destination) SeedOffsets(offsets []offset.Offset) {
	for _, o := range offsets {
		d.offsets.seed(o.Key, o)
	}
}

// Enqueue routes ev to its stable-hashed worker slot. It blocks if that
// slot's queue is full, which is the backpressure mechanism described in
// spec.md §4.9 ("a slow destination therefore caps the whole pipeline"),
// and it stalls while ev's table is paused for schema-change quiescence.
func (d *Destination) Enqueue(ctx context.Context, ev *event.Event, token cltoken.Token) error {
	if err := d.gate.waitUnpaused(ctx, ev.Table()); err != nil {
		return err
	}

	slot := WorkerFor(ev, len(d.queues))
	select {
	case d.queues[slot] <- queueEntry{ev: ev, token: token}:
		d.gate.add(ev.Table(), 1)
		metrics.BacklogDepth.WithLabelValues(d.Name).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drained reports whether every worker slot's queue is currently empty,
// used by the schema-change quiescence protocol (spec.md §4.9) to know
// when it is safe to apply DDL.
func (d *Destination) Drained() bool {
	for _, q := range d.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

// Run launches one goroutine per worker slot via the stopper group.
func (d *Destination) Run(s *stopper.Context) {
	for i := range d.queues {
		slot := i
		s.Go(func() error {
			d.runWorker(s, slot)
			return nil
		})
	}
}

// runWorker accumulates a contiguous per-partition batch from its slot's
// queue and flushes it on size, age, or a partition-key change, per
// spec.md §4.6's batching bounds and §4.9's per-partition ordering.
func (d *Destination) runWorker(s *stopper.Context, slot int) {
	q := d.queues[slot]
	var batch []queueEntry
	var partitionKey string
	timer := time.NewTimer(d.Config.MaxBatchAge)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		d.writeBatch(s, batch)
		metrics.BacklogDepth.WithLabelValues(d.Name).Sub(float64(len(batch)))
		batch = nil
	}

	for {
		select {
		case <-s.Stopping():
			flush()
			return
		case entry, ok := <-q:
			if !ok {
				flush()
				return
			}
			key := entry.ev.Keyspace() + "/" + entry.ev.Table() + "/" + entry.ev.PartitionKeyString()
			if len(batch) > 0 && key != partitionKey {
				flush()
			}
			partitionKey = key
			batch = append(batch, entry)
			if len(batch) >= d.Config.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(d.Config.MaxBatchAge)
			}
		case <-timer.C:
			flush()
			timer.Reset(d.Config.MaxBatchAge)
		}
	}
}

func (d *Destination) writeBatch(s *stopper.Context, entries []queueEntry) {
	if len(entries) == 0 {
		return
	}
	first := entries[0].ev
	defer d.gate.add(first.Table(), -len(entries))
	key := offset.Key{Table: first.Table(), Keyspace: first.Keyspace(), PartitionID: PartitionID(first), Destination: d.Name}

	if d.quarantine.contains(first.Keyspace(), first.Table()) {
		d.dlqAll(entries, errors.New("destination table is quarantined after a failed schema change"), retry.Terminal)
		return
	}

	current := d.offsets.get(key)

	events := make([]*event.Event, len(entries))
	for i, e := range entries {
		events[i] = e.ev
	}
	batch := sink.Batch{
		Keyspace:    first.Keyspace(),
		Table:       first.Table(),
		PartitionID: key.PartitionID,
		Events:      events,
		UpToToken:   entries[len(entries)-1].token,
	}

	var result sink.WriteResult
	attempt := 0
	classified := retry.Do(s, d.Policy, d.Log, func() error {
		attempt++
		if attempt > 1 {
			metrics.RetryAttemptsTotal.WithLabelValues(d.Name).Inc()
		}
		var innerErr error
		result, innerErr = d.Sink.WriteBatch(s, batch, current)
		return innerErr
	})

	if classified == nil {
		d.offsets.set(key, result.Offset)
		metrics.EventsProcessed.WithLabelValues(d.Name, first.Table()).Add(float64(len(entries)))
		lag := time.Since(microsToTime(result.Offset.LastEventTimestamp))
		metrics.ReplicationLagSeconds.WithLabelValues(d.Name).Set(lag.Seconds())
		return
	}

	metrics.ErrorsTotal.WithLabelValues(d.Name, classified.Category.String()).Inc()
	d.dlqAll(entries, classified.Err, classified.Category)
}

// dlqAll writes one DLQ record per event and advances the offset past
// the batch, per spec.md §4.7: "writing a DLQ record is the
// acknowledgement of giving up on that event; only after the DLQ write
// succeeds does the orchestrator advance the offset past it."
func (d *Destination) dlqAll(entries []queueEntry, cause error, category retry.Category) {
	if len(entries) == 0 {
		return
	}
	first := entries[0].ev
	key := offset.Key{Table: first.Table(), Keyspace: first.Keyspace(), PartitionID: PartitionID(first), Destination: d.Name}
	current := d.offsets.get(key)

	for _, e := range entries {
		if err := d.DLQ.Write(e.ev, d.Name, category, cause, d.Policy.MaxAttempts, time.Now()); err != nil {
			d.Log.WithError(err).Error("fatal: DLQ write failed, halting offset advancement")
			metrics.ErrorsTotal.WithLabelValues(d.Name, "fatal").Inc()
			return
		}
		metrics.DLQEventsTotal.WithLabelValues(d.Name, category.String()).Inc()
	}

	next, advanced := offset.Advance(current, entries[len(entries)-1].token, first.SourceTimestampMicros(), int64(len(entries)), time.Now())
	if advanced {
		d.offsets.set(key, next)
	}
}

func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros)
}
