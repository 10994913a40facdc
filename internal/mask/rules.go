// Package mask implements the masking transform (component C4): it
// classifies outgoing columns by name pattern and substitutes PII/PHI
// values with irreversible digests or keyed MACs, as specified in
// spec.md §4.4.
package mask

import "strings"

// Classification is the sensitivity bucket a column falls into.
type Classification int

const (
	// None columns pass through unchanged.
	None Classification = iota
	// PII columns are irreversibly digested.
	PII
	// PHI columns are keyed-MAC'd. Tested before PII so a column matching
	// both patterns receives the stronger treatment, per spec.md §4.4.
	PHI
)

func (c Classification) String() string {
	switch c {
	case PII:
		return "PII"
	case PHI:
		return "PHI"
	default:
		return "NONE"
	}
}

// defaultPII and defaultPHI are the built-in pattern lists used when no
// external rules file is present, per spec.md §4.4's Defaults clause.
// Order is declaration order; classification tests PHI patterns first.
var (
	defaultPII = []string{"email", "phone", "ssn", "address", "credit_card", "ip_address"}
	defaultPHI = []string{"medical_record", "patient_id", "diagnosis", "prescription", "medication"}
)

// RuleSet is the process-wide, immutable pair of ordered pattern lists
// used to classify columns by name. It is loaded once at startup and is
// reloadable only via restart, per spec.md §3's MaskingRule set.
type RuleSet struct {
	pii []string
	phi []string
}

// DefaultRuleSet returns the built-in pattern lists named in spec.md
// §4.4.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{pii: defaultPII, phi: defaultPHI}
}

// NewRuleSet builds a RuleSet from externally supplied pattern lists,
// preserving declaration order. Empty slices fall back to no patterns
// of that kind (not to the built-in defaults) — callers that want the
// defaults should use DefaultRuleSet.
func NewRuleSet(pii, phi []string) *RuleSet {
	return &RuleSet{
		pii: append([]string(nil), pii...),
		phi: append([]string(nil), phi...),
	}
}

// Classify lowercases columnName and tests it against the PHI pattern
// list in declaration order, then the PII list, per spec.md §4.4.
func (r *RuleSet) Classify(columnName string) Classification {
	lower := strings.ToLower(columnName)
	for _, pattern := range r.phi {
		if strings.Contains(lower, pattern) {
			return PHI
		}
	}
	for _, pattern := range r.pii {
		if strings.Contains(lower, pattern) {
			return PII
		}
	}
	return None
}
