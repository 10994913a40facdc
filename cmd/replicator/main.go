// Command replicator is the CDC replicator's entry point: it loads
// configuration, wires the commit-log reader, masking transform,
// per-destination sinks, and the pipeline orchestrator, serves the
// health/metrics HTTP surface, and handles graceful shutdown on signal,
// per spec.md §6.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/commitlog"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/config"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/mask"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/pipeline"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/retry"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/server"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink/columnar"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink/relational"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/sink/timeseries"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/source/catalog"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/diag"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/stopper"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/validate"
)

// Exit codes per spec.md §6.
const (
	exitOK                = 0
	exitConfigInvalid     = 1
	exitSourceUnreachable = 2
	exitFatalDLQFailure   = 3
	exitInternalError     = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Default()
	fs := pflag.NewFlagSet("replicator", pflag.ContinueOnError)
	cfg.Bind(fs)
	yamlPath := fs.String("config", "", "path to a YAML configuration file, merged over the defaults")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.WithError(err).Error("invalid command-line flags")
		return exitConfigInvalid
	}
	if *yamlPath != "" {
		if err := cfg.LoadYAML(*yamlPath); err != nil {
			log.WithError(err).Error("invalid configuration file")
			return exitConfigInvalid
		}
		// Re-apply the command-line flags so they take precedence over
		// the values read from the file.
		if err := fs.Parse(os.Args[1:]); err != nil {
			log.WithError(err).Error("invalid command-line flags")
			return exitConfigInvalid
		}
	}
	if err := cfg.Preflight(); err != nil {
		log.WithError(err).Error("configuration failed preflight checks")
		return exitConfigInvalid
	}

	root := stopper.WithContext(context.Background())
	diagnostics := diag.New()

	dlq, err := retry.NewDLQ(cfg.DLQDir)
	if err != nil {
		log.WithError(err).Error("could not open dead-letter queue directory")
		return exitInternalError
	}
	defer dlq.Close()

	masker := mask.New(
		mask.NewRuleSet(cfg.Masking.PIIPatterns, cfg.Masking.PHIPatterns),
		[]byte(cfg.Masking.Salt),
		cfg.Masking.KeyID,
		[]byte(cfg.Masking.PHIKey),
	)

	reader := commitlog.New(cfg.CommitLogDir)
	orchestrator := pipeline.New(reader, masker, cfg.PipelineTables())

	for _, d := range cfg.Destinations {
		if !d.Enabled {
			continue
		}
		s, mapper, catalogSource, err := buildSink(root, d)
		if err != nil {
			log.WithError(err).WithField("destination", d.Name).Error("source unreachable while connecting a destination")
			return exitSourceUnreachable
		}
		diagnostics.Register(d.Name, sinkPingAdapter{s})

		dest := pipeline.NewDestination(d.Name, s, cfg.PipelineConfig(), cfg.RetryPolicy(), dlq)
		orchestrator.AddDestination(dest, mapper, catalogSource, schema.WithPollInterval(cfg.SchemaPollInterval()))
	}

	mux := server.New(diagnostics)
	httpServer := &http.Server{Addr: cfg.HealthAddr, Handler: mux}
	root.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	root.Go(func() error { return orchestrator.Run(root) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("received shutdown signal")
	case <-root.Done():
		log.WithError(root.Err()).Warn("pipeline halted itself")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline())
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	orchestrator.Shutdown(root, cfg.ShutdownDeadline())

	if root.Err() != nil {
		return exitInternalError
	}
	return exitOK
}

// sinkPingAdapter satisfies diag.Pingable by delegating to a Sink's
// HealthCheck, since the two interfaces name the same operation
// differently (diag predates the sink package and is shared by other
// dependency kinds too).
type sinkPingAdapter struct{ s sink.Sink }

func (a sinkPingAdapter) Ping(ctx context.Context) error { return a.s.HealthCheck(ctx) }

// buildSink constructs and connects one destination's Sink plus its type
// mapper and schema catalog source, per spec.md §6's destination family
// enum. The catalog source reuses the sink's own already-open connection
// rather than opening a second one.
func buildSink(ctx context.Context, d config.Destination) (sink.Sink, validate.Mapper, schema.CatalogSource, error) {
	switch d.Family {
	case "relational":
		rcfg := relational.Config{Host: d.Host, Port: d.Port, Database: d.Database, User: d.User, Password: d.Password, PoolSize: 4}
		s := relational.New(d.Name, rcfg)
		if err := s.Connect(ctx); err != nil {
			return nil, nil, nil, err
		}
		return s, validate.NewRelationalMapper(), catalog.NewPostgresSource(s.Pool().Pool), nil
	case "timeseries":
		rcfg := relational.Config{Host: d.Host, Port: d.Port, Database: d.Database, User: d.User, Password: d.Password, PoolSize: 4}
		s := timeseries.New(d.Name, rcfg)
		if err := s.Connect(ctx); err != nil {
			return nil, nil, nil, err
		}
		return s, validate.NewTimeSeriesMapper(), catalog.NewPostgresSource(s.Pool().Pool), nil
	case "columnar":
		ccfg := columnar.Config{Host: d.Host, Port: d.Port, Database: d.Database, User: d.User, Password: d.Password}
		s := columnar.New(d.Name, ccfg)
		if err := s.Connect(ctx); err != nil {
			return nil, nil, nil, err
		}
		return s, validate.NewColumnarMapper(), catalog.NewClickHouseSource(s.Conn()), nil
	default:
		return nil, nil, nil, errors.Errorf("unknown destination family %q", d.Family)
	}
}
