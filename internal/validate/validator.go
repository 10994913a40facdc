package validate

import (
	"fmt"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/schema"
)

// Reason names why a column failed validation, per spec.md §4.5.
type Reason string

const (
	// ReasonUnsupportedType means the source type has no destination
	// mapping.
	ReasonUnsupportedType Reason = "unsupported-type"
	// ReasonKeyDrop means a destination-specific constraint would be
	// violated by dropping a column still present as a key in the event.
	ReasonKeyDrop Reason = "key-drop"
)

// SchemaIncompatible is the Terminal-category error the validator
// returns when an event cannot be written to a destination under its
// current schema, per spec.md §4.5 and §7.
type SchemaIncompatible struct {
	Column string
	Reason Reason
}

func (e *SchemaIncompatible) Error() string {
	return fmt.Sprintf("schema incompatible: column %q: %s", e.Column, e.Reason)
}

// Validator checks Events against one destination's mapper and cached
// schema before a sink is asked to write them, per spec.md §4.5.
type Validator struct {
	mapper Mapper
}

// New constructs a Validator bound to one destination's mapper.
func New(mapper Mapper) *Validator {
	return &Validator{mapper: mapper}
}

// Validate checks ev's columns against v's mapper and cached, which may
// be nil if no snapshot has been observed yet for the event's table.
//
// Per spec.md §4.5: a source type with no mapping is rejected as
// unsupported-type. A column absent from the cached schema (an
// add-column race) is accepted, relying on schema-change DDL having
// already been applied. A column that is still a partition or
// clustering key in the event but has been dropped from the cached
// schema is rejected as key-drop.
func (v *Validator) Validate(ev *event.Event, cached *schema.Snapshot) error {
	keyColumns := make(map[string]bool)
	for _, c := range ev.PartitionKey() {
		keyColumns[c.Name] = true
	}
	for _, c := range ev.ClusteringKey() {
		keyColumns[c.Name] = true
	}

	var cachedColumns map[string]bool
	if cached != nil {
		cachedColumns = make(map[string]bool, len(cached.Columns))
		for _, c := range cached.Columns {
			cachedColumns[c.Name] = true
		}
	}

	for _, c := range ev.Columns() {
		if _, ok := v.mapper.MapType(c.SourceType); !ok {
			return &SchemaIncompatible{Column: c.Name, Reason: ReasonUnsupportedType}
		}
	}

	if cachedColumns != nil {
		for key := range keyColumns {
			if !cachedColumns[key] {
				return &SchemaIncompatible{Column: key, Reason: ReasonKeyDrop}
			}
		}
	}

	return nil
}
