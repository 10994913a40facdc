package pipeline

import "time"

// Config holds the orchestrator's tunables, per spec.md §6's
// configuration surface.
type Config struct {
	BatchSize                 int
	MaxBatchBytes             int
	MaxBatchAge               time.Duration
	WorkersPerDestination     int
	MaxInflightBatches        int
	SchemaDrainTimeout        time.Duration
	ShutdownDeadline          time.Duration
}

// DefaultConfig matches spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:             100,
		MaxBatchBytes:         1 << 20,
		MaxBatchAge:           time.Second,
		WorkersPerDestination: 4,
		MaxInflightBatches:    8,
		SchemaDrainTimeout:    10 * time.Second,
		ShutdownDeadline:      30 * time.Second,
	}
}

// queueCapacity is Qdest[i]'s capacity, per spec.md §4.9:
// "maxInflightBatches[i] * maxBatchSize."
func (c Config) queueCapacity() int {
	return c.MaxInflightBatches * c.BatchSize
}
