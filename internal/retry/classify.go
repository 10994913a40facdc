// Package retry implements the retry and DLQ component (C7):
// exponential backoff with jitter around sink calls, error
// classification, and the append-only dead-letter queue, as specified
// in spec.md §4.7.
package retry

import "strings"

// Category is the error classification named in spec.md §7. It governs
// whether a failed sink call is retried, sent straight to the DLQ, or
// treated as fatal.
type Category int

const (
	// Transient errors are retried with backoff up to maxAttempts.
	Transient Category = iota
	// Terminal errors are routed to the DLQ immediately.
	Terminal
	// Quarantine marks a failed DDL application; subsequent events for
	// that (destination, table) are DLQ'd until cleared.
	Quarantine
	// Fatal errors halt the pipeline rather than risk violating the
	// exactly-once-or-DLQ invariant.
	Fatal
)

func (c Category) String() string {
	switch c {
	case Transient:
		return "Transient"
	case Terminal:
		return "Terminal"
	case Quarantine:
		return "Quarantine"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// CategorizedError pairs a sink error with its retry classification, per
// spec.md §7.
type CategorizedError struct {
	Category Category
	Err      error
}

func (e *CategorizedError) Error() string { return e.Err.Error() }
func (e *CategorizedError) Unwrap() error { return e.Err }

// TransientMarkers are substrings of low-level driver error messages
// that spec.md §4.7 names as Transient: "timeouts, broken-connection,
// lock-contention, too-many-connections, write-conflict." Sinks can use
// IsKnownTransient to decide their own classification before returning
// an error to the retry wrapper.
var TransientMarkers = []string{
	"timeout",
	"broken connection",
	"connection reset",
	"lock contention",
	"deadlock",
	"too many connections",
	"write conflict",
	"serialization failure",
}

// IsKnownTransient reports whether err's message matches one of the
// recognized Transient driver-error signatures.
func IsKnownTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range TransientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify wraps err with a Category. An err already wrapped as a
// CategorizedError is returned unchanged. Every other error is
// classified Transient (no message signatures are inspected here), per spec.md §4.7's
// "Transient-unknown errors default to Transient up to the retry cap."
func Classify(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CategorizedError); ok {
		return ce
	}
	return &CategorizedError{Category: Transient, Err: err}
}

// AsTerminal wraps err as a Terminal error, for callers (schema
// validation, parse-time content errors) that already know the failure
// is not retryable.
func AsTerminal(err error) *CategorizedError {
	return &CategorizedError{Category: Terminal, Err: err}
}
