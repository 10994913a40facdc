package mask

import (
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
)

// Strategy names the transform applied to a masked column, recorded in
// the audit record per spec.md §4.4.
type Strategy string

const (
	StrategyHash     Strategy = "HASH"
	StrategyHMAC     Strategy = "HMAC"
	StrategyPassthru Strategy = "PASSTHROUGH"
)

// AuditRecord is the structured, value-free record emitted for every
// masked field, per spec.md §4.4: "never the original value."
type AuditRecord struct {
	EventID        string
	Column         string
	Classification Classification
	Strategy       Strategy
	KeyID          string
}

// Option configures a Masker.
type Option func(*Masker)

// WithLogger overrides the audit logger.
func WithLogger(l *log.Entry) Option {
	return func(m *Masker) { m.log = l }
}

// Masker applies the masking transform described in spec.md §4.4 to
// Events, producing a new Event via copy-on-transform (spec.md §4.3) and
// emitting one audit record per masked field.
type Masker struct {
	rules    *RuleSet
	salt     []byte
	phiKeyID string
	phiKey   []byte
	log      *log.Entry
}

// New constructs a Masker. salt is the process-wide PII digest salt;
// phiKeyID/phiKey identify and supply the current PHI HMAC key. Key
// rotation is out of scope per spec.md §8; phiKeyID is recorded per
// value so a future rotation can be audited.
func New(rules *RuleSet, salt []byte, phiKeyID string, phiKey []byte, opts ...Option) *Masker {
	m := &Masker{
		rules:    rules,
		salt:     salt,
		phiKeyID: phiKeyID,
		phiKey:   phiKey,
		log:      log.WithField("component", "mask.Masker"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mask returns a new Event with every PII/PHI column substituted by its
// digest or MAC, per spec.md §4.4. The original Event is left untouched;
// callers should discard it, per spec.md §4.3's copy-on-transform rule.
func (m *Masker) Mask(ev *event.Event) *event.Event {
	cols := ev.Columns()
	out := make([]event.Column, len(cols))

	for i, c := range cols {
		if c.Value == nil {
			out[i] = c
			continue
		}

		classification := m.rules.Classify(c.Name)
		switch classification {
		case PHI:
			token := macPHI(m.phiKey, canonicalize(c.Value))
			out[i] = event.Column{Name: c.Name, Value: token, SourceType: c.SourceType}
			m.audit(ev.ID(), c.Name, classification, StrategyHMAC, m.phiKeyID)
		case PII:
			token := digestPII(m.salt, canonicalize(c.Value))
			out[i] = event.Column{Name: c.Name, Value: token, SourceType: c.SourceType}
			m.audit(ev.ID(), c.Name, classification, StrategyHash, "")
		default:
			out[i] = c
		}
	}

	return ev.WithColumns(out)
}

func (m *Masker) audit(eventID, column string, classification Classification, strategy Strategy, keyID string) {
	fields := log.Fields{
		"eventId":        eventID,
		"column":         column,
		"classification": classification.String(),
		"strategy":       string(strategy),
	}
	if keyID != "" {
		fields["keyId"] = keyID
	}
	m.log.WithFields(fields).Info("masked field")
}
