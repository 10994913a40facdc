// Package validate implements the validator and schema mapper
// (component C5): it maps source column types to destination-native
// types and rejects events that the destination cannot represent, as
// specified in spec.md §4.5.
package validate

// Family identifies a destination's type system, since the mapping
// table differs per destination family.
type Family int

const (
	// Relational covers the relational warehouse sink.
	Relational Family = iota
	// TimeSeries derives from Relational with per-key overrides, per
	// spec.md §4.5.
	TimeSeries
	// Columnar covers the columnar analytic store sink.
	Columnar
)

// unsupported marks source types with an explicit no-mapping policy,
// per spec.md §4.5: "tuple and counter types are declared unsupported."
var unsupportedSourceTypes = map[string]bool{
	"tuple":   true,
	"counter": true,
}

// relationalTypes is the static source-type → destination-type table
// for the relational warehouse, per spec.md §4.5.
var relationalTypes = map[string]string{
	"text":      "text",
	"varchar":   "text",
	"ascii":     "text",
	"uuid":      "uuid",
	"timeuuid":  "uuid",
	"int":       "integer",
	"int32":     "integer",
	"bigint":    "bigint",
	"int64":     "bigint",
	"smallint":  "smallint",
	"tinyint":   "smallint",
	"float":     "real",
	"double":    "double precision",
	"decimal":   "numeric",
	"boolean":   "boolean",
	"blob":      "bytea",
	"timestamp": "timestamp with time zone",
	"date":      "date",
	"time":      "time",
	"inet":      "inet",
	"list":      "jsonb",
	"set":       "jsonb",
	"map":       "jsonb",
	"udt":       "jsonb",
}

// timeSeriesOverrides holds the per-key overrides that the time-series
// mapper applies on top of the relational table, per spec.md §4.5
// ("timestamp prefers timezone-aware form").
var timeSeriesOverrides = map[string]string{
	"timestamp": "timestamptz",
}

// Mapper maps a source type name to a destination-native type name for
// one destination family.
type Mapper interface {
	// MapType returns the destination type for a source type, and false
	// if the source type has no mapping (spec.md's unsupported-type
	// case).
	MapType(sourceType string) (string, bool)
	// IsWideningOrEquivalent implements schema.TypeCompatibilityChecker,
	// used by the schema monitor (C3) to classify alter-type changes,
	// per spec.md §4.2.
	IsWideningOrEquivalent(oldType, newType string) bool
}

// wideningPairs enumerates source-type alter-type transforms considered
// widening or equivalent, per spec.md §4.2's examples (int→bigint,
// decimal→double-precision compatible; text→int not).
var wideningPairs = map[[2]string]bool{
	{"int", "bigint"}:         true,
	{"int32", "int64"}:        true,
	{"smallint", "int"}:       true,
	{"tinyint", "smallint"}:   true,
	{"decimal", "double"}:     true,
	{"float", "double"}:       true,
	{"varchar", "text"}:       true,
	{"ascii", "text"}:         true,
	{"timeuuid", "uuid"}:      true,
}

type relationalMapper struct {
	types     map[string]string
	overrides map[string]string
}

// NewRelationalMapper builds the C5 mapper for the relational warehouse.
func NewRelationalMapper() Mapper {
	return &relationalMapper{types: relationalTypes}
}

// NewTimeSeriesMapper builds the C5 mapper for the time-series
// warehouse: it embeds the relational mapper's table and layers
// per-key overrides on top, the Go expression of spec.md §4.5's
// "derives by inheritance from the relational one."
func NewTimeSeriesMapper() Mapper {
	return &relationalMapper{types: relationalTypes, overrides: timeSeriesOverrides}
}

func (m *relationalMapper) MapType(sourceType string) (string, bool) {
	if unsupportedSourceTypes[sourceType] {
		return "", false
	}
	if m.overrides != nil {
		if t, ok := m.overrides[sourceType]; ok {
			return t, true
		}
	}
	t, ok := m.types[sourceType]
	return t, ok
}

func (m *relationalMapper) IsWideningOrEquivalent(oldType, newType string) bool {
	return wideningPairs[[2]string{oldType, newType}]
}

// columnarMapper maps to the columnar analytic store's native types.
type columnarMapper struct{}

// NewColumnarMapper builds the C5 mapper for the columnar analytic
// store.
func NewColumnarMapper() Mapper {
	return columnarMapper{}
}

var columnarTypes = map[string]string{
	"text":      "String",
	"varchar":   "String",
	"ascii":     "String",
	"uuid":      "UUID",
	"timeuuid":  "UUID",
	"int":       "Int32",
	"int32":     "Int32",
	"bigint":    "Int64",
	"int64":     "Int64",
	"smallint":  "Int16",
	"tinyint":   "Int8",
	"float":     "Float32",
	"double":    "Float64",
	"decimal":   "Decimal(38, 10)",
	"boolean":   "UInt8",
	"blob":      "String",
	"timestamp": "DateTime64(6)",
	"date":      "Date",
	"time":      "String",
	"inet":      "String",
	"list":      "String",
	"set":       "String",
	"map":       "String",
	"udt":       "String",
}

func (columnarMapper) MapType(sourceType string) (string, bool) {
	if unsupportedSourceTypes[sourceType] {
		return "", false
	}
	t, ok := columnarTypes[sourceType]
	return t, ok
}

func (columnarMapper) IsWideningOrEquivalent(oldType, newType string) bool {
	return wideningPairs[[2]string{oldType, newType}]
}

// MapperFor returns the mapper for a destination family.
func MapperFor(family Family) Mapper {
	switch family {
	case TimeSeries:
		return NewTimeSeriesMapper()
	case Columnar:
		return NewColumnarMapper()
	default:
		return NewRelationalMapper()
	}
}
