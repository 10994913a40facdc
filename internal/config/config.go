// Package config binds the replicator's recognized options (spec.md §6)
// to command-line flags and an optional YAML file, following the
// teacher's pflag + yaml.v2 configuration idiom.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/pipeline"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/retry"
)

// Destination is one configured destination's connection and enablement
// settings, per spec.md §6's "per-destination {enabled, host, port,
// database, credentials}".
type Destination struct {
	Name     string `yaml:"name"`
	Family   string `yaml:"family"` // "relational", "timeseries", or "columnar"
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Table identifies one (keyspace, table) pair the replicator tracks for
// schema changes and validation, per spec.md §6's tracked-table list.
type Table struct {
	Keyspace string `yaml:"keyspace"`
	Name     string `yaml:"name"`
}

// Masking holds the PII/PHI rule lists and key material named in
// spec.md §6. Salt and PHI key are opaque byte strings; config carries
// them base64-free as raw strings since they are sourced from a secrets
// file or environment, never hand-typed.
type Masking struct {
	PIIPatterns []string `yaml:"piiPatterns"`
	PHIPatterns []string `yaml:"phiPatterns"`
	Salt        string   `yaml:"salt"`
	KeyID       string   `yaml:"keyId"`
	PHIKey      string   `yaml:"phiKey"`
}

// Config is the full set of recognized options from spec.md §6.
type Config struct {
	CommitLogDir string `yaml:"commitLogDir"`

	BatchSize                        int   `yaml:"batchSize"`
	MaxBatchBytes                    int   `yaml:"maxBatchBytes"`
	MaxBatchAgeMs                    int64 `yaml:"maxBatchAgeMs"`
	WorkersPerDestination            int   `yaml:"workersPerDestination"`
	MaxInflightBatchesPerDestination int   `yaml:"maxInflightBatchesPerDestination"`

	RetryMaxAttempts  int     `yaml:"retryMaxAttempts"`
	RetryBaseDelayMs  int64   `yaml:"retryBaseDelayMs"`
	RetryMultiplier   float64 `yaml:"retryMultiplier"`
	RetryMaxDelayMs   int64   `yaml:"retryMaxDelayMs"`
	RetryJitterFrac   float64 `yaml:"retryJitterFrac"`

	SchemaPollIntervalMs int64 `yaml:"schemaPollIntervalMs"`
	ShutdownDeadlineMs   int64 `yaml:"shutdownDeadlineMs"`

	DLQDir        string        `yaml:"dlqDir"`
	HealthAddr    string        `yaml:"healthAddr"`
	Destinations  []Destination `yaml:"destinations"`
	Tables        []Table       `yaml:"tables"`
	Masking       Masking       `yaml:"masking"`
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		CommitLogDir:                     "/var/lib/cdc/commitlog",
		BatchSize:                        100,
		MaxBatchBytes:                    1 << 20,
		MaxBatchAgeMs:                    1000,
		WorkersPerDestination:            4,
		MaxInflightBatchesPerDestination: 8,
		RetryMaxAttempts:                 5,
		RetryBaseDelayMs:                 100,
		RetryMultiplier:                  2.0,
		RetryMaxDelayMs:                  30000,
		RetryJitterFrac:                  0.25,
		SchemaPollIntervalMs:             30000,
		ShutdownDeadlineMs:               30000,
		DLQDir:                           "/var/lib/cdc/dlq",
		HealthAddr:                       ":8080",
	}
}

// Bind registers every recognized option on fs with its documented
// default, following the teacher's pflag binding style.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.CommitLogDir, "commit-log-dir", c.CommitLogDir, "directory the commit-log reader tails")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "maximum events per batch")
	fs.IntVar(&c.MaxBatchBytes, "max-batch-bytes", c.MaxBatchBytes, "maximum serialized bytes per batch")
	fs.Int64Var(&c.MaxBatchAgeMs, "max-batch-age-ms", c.MaxBatchAgeMs, "maximum time a partial batch waits before flushing")
	fs.IntVar(&c.WorkersPerDestination, "workers-per-destination", c.WorkersPerDestination, "worker slots per destination")
	fs.IntVar(&c.MaxInflightBatchesPerDestination, "max-inflight-batches", c.MaxInflightBatchesPerDestination, "bounded queue depth in batches, per destination worker")
	fs.IntVar(&c.RetryMaxAttempts, "retry-max-attempts", c.RetryMaxAttempts, "attempts before a Transient error escalates to Terminal")
	fs.Int64Var(&c.RetryBaseDelayMs, "retry-base-delay-ms", c.RetryBaseDelayMs, "initial backoff delay")
	fs.Float64Var(&c.RetryMultiplier, "retry-multiplier", c.RetryMultiplier, "backoff growth factor")
	fs.Int64Var(&c.RetryMaxDelayMs, "retry-max-delay-ms", c.RetryMaxDelayMs, "backoff delay cap")
	fs.Float64Var(&c.RetryJitterFrac, "retry-jitter-frac", c.RetryJitterFrac, "fractional jitter added to each backoff delay")
	fs.Int64Var(&c.SchemaPollIntervalMs, "schema-poll-interval-ms", c.SchemaPollIntervalMs, "schema catalog poll cadence")
	fs.Int64Var(&c.ShutdownDeadlineMs, "shutdown-deadline-ms", c.ShutdownDeadlineMs, "graceful shutdown wall-clock budget")
	fs.StringVar(&c.DLQDir, "dlq-dir", c.DLQDir, "dead-letter queue directory")
	fs.StringVar(&c.HealthAddr, "health-addr", c.HealthAddr, "listen address for the health and metrics HTTP surface")
}

// LoadYAML merges a YAML file's contents into c, overriding only the
// fields the file sets (zero-value fields in the decoded struct are
// simply overwritten, matching yaml.v2's default unmarshal behavior).
func (c *Config) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "config: read yaml file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "config: parse yaml file")
	}
	return nil
}

// Preflight validates c against the invariants spec.md §6 implies
// (positive sizes, a non-empty commit-log directory, at least one
// enabled destination) before the orchestrator is constructed.
func (c *Config) Preflight() error {
	if c.CommitLogDir == "" {
		return errors.New("config: commitLogDir must be set")
	}
	if c.BatchSize <= 0 {
		return errors.New("config: batchSize must be positive")
	}
	if c.WorkersPerDestination <= 0 {
		return errors.New("config: workersPerDestination must be positive")
	}
	if c.MaxInflightBatchesPerDestination <= 0 {
		return errors.New("config: maxInflightBatchesPerDestination must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return errors.New("config: retry.maxAttempts must be positive")
	}
	enabled := 0
	for _, d := range c.Destinations {
		if d.Enabled {
			enabled++
			if d.Host == "" {
				return errors.Errorf("config: destination %q is enabled but has no host", d.Name)
			}
			switch d.Family {
			case "relational", "timeseries", "columnar":
			default:
				return errors.Errorf("config: destination %q has unknown family %q", d.Name, d.Family)
			}
		}
	}
	if enabled == 0 {
		return errors.New("config: at least one destination must be enabled")
	}
	if len(c.Tables) == 0 {
		return errors.New("config: at least one table must be configured")
	}
	return nil
}

// PipelineConfig derives the pipeline package's tunables from c.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		BatchSize:             c.BatchSize,
		MaxBatchBytes:         c.MaxBatchBytes,
		MaxBatchAge:           time.Duration(c.MaxBatchAgeMs) * time.Millisecond,
		WorkersPerDestination: c.WorkersPerDestination,
		MaxInflightBatches:    c.MaxInflightBatchesPerDestination,
		SchemaDrainTimeout:    time.Duration(c.SchemaPollIntervalMs) * time.Millisecond,
		ShutdownDeadline:      time.Duration(c.ShutdownDeadlineMs) * time.Millisecond,
	}
}

// PipelineTables converts the configured table list into the pipeline
// package's Table type.
func (c *Config) PipelineTables() []pipeline.Table {
	tables := make([]pipeline.Table, len(c.Tables))
	for i, t := range c.Tables {
		tables[i] = pipeline.Table{Keyspace: t.Keyspace, Name: t.Name}
	}
	return tables
}

// RetryPolicy derives the retry package's backoff policy from c.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		Multiplier:  c.RetryMultiplier,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		JitterFrac:  c.RetryJitterFrac,
	}
}

// SchemaPollInterval derives the schema monitor's poll cadence from c.
func (c *Config) SchemaPollInterval() time.Duration {
	return time.Duration(c.SchemaPollIntervalMs) * time.Millisecond
}

// ShutdownDeadline derives the orchestrator's shutdown budget from c.
func (c *Config) ShutdownDeadline() time.Duration {
	return time.Duration(c.ShutdownDeadlineMs) * time.Millisecond
}
