package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// Policy holds the backoff parameters named in spec.md §4.7 and §6.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	JitterFrac  float64
}

// DefaultPolicy matches spec.md §6's documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
		JitterFrac:  0.25,
	}
}

// Delay computes the backoff duration for attempt n (1-based), per
// spec.md §4.7: delay = min(maxDelay, baseDelay * multiplier^(n-1)) *
// (1 + U[0, jitterFrac]). rnd supplies the jitter sample so callers can
// inject a deterministic source in tests.
func (p Policy) Delay(n int, rnd *rand.Rand) time.Duration {
	raw := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	capped := math.Min(raw, float64(p.MaxDelay))
	jitter := 1 + rnd.Float64()*p.JitterFrac
	return time.Duration(capped * jitter)
}

// Do runs fn, retrying on Transient errors per p until it succeeds, the
// classified error escalates to Terminal at the attempt cap, or ctx is
// canceled. Retries are per-batch: fn re-executes the entire write
// protocol on each attempt, per spec.md §4.7.
//
// Do checks ctx before each attempt and before each sleep, per spec.md
// §5's cancellation contract.
func Do(ctx context.Context, p Policy, log *log.Entry, fn func() error) *CategorizedError {
	var rnd *rand.Rand
	var lastErr *CategorizedError

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CategorizedError{Category: Transient, Err: err}
		}

		err := fn()
		if err == nil {
			return nil
		}

		classified := Classify(err)
		if classified.Category != Transient {
			return classified
		}
		lastErr = classified

		if attempt == p.MaxAttempts {
			break
		}

		if rnd == nil {
			rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		delay := p.Delay(attempt, rnd)
		if log != nil {
			log.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("retrying after transient sink error")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &CategorizedError{Category: Transient, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	// Exhausted the attempt cap: escalate to Terminal, per spec.md §4.7.
	return &CategorizedError{Category: Terminal, Err: lastErr.Err}
}
