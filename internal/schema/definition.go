package schema

import (
	"regexp"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// Column declares one column of a schema.
type Column struct {
	Name        string
	Type        domain.ColumnType
	Description string
}

// Mapping renames a raw column to a normalized column.
type Mapping struct {
	Raw        string
	Normalized string
}

// Constraints is the rule set for one normalized column. Zero fields are
// unconstrained.
type Constraints struct {
	// Numeric bounds, both inclusive.
	Min *float64
	Max *float64

	// Temporal bounds: NotBefore inclusive, Before exclusive.
	NotBefore time.Time
	Before    time.Time

	// NotNull makes a null cell a violation.
	NotNull bool

	// Allowed enumerates valid codes. Matching is case-sensitive.
	Allowed []string

	// Pattern must match the whole value.
	Pattern *regexp.Regexp

	// MaxLength bounds the value length in characters.
	MaxLength int

	// Code is the issue code reported for NotNull, Allowed and Pattern
	// violations. Length violations use Code when it is set for the column,
	// otherwise VALUE_TOO_LONG.
	Code string
}

// Definition is the declarative source of a Contract. Slices are ordered;
// that order drives report ordering.
type Definition struct {
	RawRequired []Column
	RawOptional []Column

	Required []Column
	Optional []Column

	Mapping     []Mapping
	Constraints map[string]Constraints

	// DuplicateKey names the normalized columns that identify a measurement.
	DuplicateKey []string

	// TimeLayouts are tried in order when parsing datetime columns.
	TimeLayouts []string

	// NullTokens are cell texts read as null after trimming.
	NullTokens []string
}

// Default bounds shared by the built-in definition.
const (
	DefaultMinValue = -1000.0
	DefaultMaxValue = 1e9
)

var (
	defaultNotBefore = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	defaultBefore    = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)

	// DefaultTimeLayouts accepts ISO-8601 and "YYYY-MM-DD HH:MM[:SS]", with or
	// without a zone offset in extended (+05:00) or basic (+0500) form.
	// Fractional seconds are accepted wherever seconds are. Anything else is
	// a parse failure.
	DefaultTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04Z0700",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05Z0700",
		"2006-01-02 15:04Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}

	DefaultNullTokens = []string{"", "NA", "N/A", "NaN", "nan", "NULL", "null", "#N/A"}

	// \s in RE2 is ASCII only; \p{Z}, \v and NEL cover the Unicode spaces
	// spreadsheet exports leave behind.
	stationIDPattern = regexp.MustCompile(`^[^\s\p{Z}\v\x{85}]+$`)
)

// DefaultDefinition returns the ECCC water quality contract.
func DefaultDefinition() Definition {
	minValue, maxValue := DefaultMinValue, DefaultMaxValue

	return Definition{
		RawRequired: []Column{
			{Name: "site_no", Type: domain.TypeString, Description: "Station/site identifier code"},
			{Name: "sample_datetime", Type: domain.TypeDatetime, Description: "Timestamp of sample collection"},
			{Name: "value", Type: domain.TypeNumber, Description: "Measured value"},
			{Name: "variable", Type: domain.TypeString, Description: "Water quality parameter name"},
			{Name: "unit", Type: domain.TypeString, Description: "Unit of measurement"},
		},
		RawOptional: []Column{
			{Name: "qualifier_flag", Type: domain.TypeString, Description: "Data quality qualifier"},
			{Name: "sdl", Type: domain.TypeNumber, Description: "Sample detection limit"},
			{Name: "mdl", Type: domain.TypeNumber, Description: "Method detection limit"},
			{Name: "variable_code", Type: domain.TypeString, Description: "Numeric code for the parameter"},
			{Name: "qa_status", Type: domain.TypeString, Description: "Quality assurance status code"},
			{Name: "sample_id", Type: domain.TypeString, Description: "Unique sample identifier"},
			{Name: "variable_fr", Type: domain.TypeString, Description: "French translation of parameter name"},
		},
		Required: []Column{
			{Name: domain.ColStationID, Type: domain.TypeString, Description: "Unique identifier for the monitoring station"},
			{Name: domain.ColTimestamp, Type: domain.TypeDatetime, Description: "Date and time of sample collection"},
			{Name: domain.ColParameter, Type: domain.TypeString, Description: "Name of the water quality parameter being measured"},
			{Name: domain.ColValue, Type: domain.TypeNumber, Description: "Numeric measurement value"},
			{Name: domain.ColUnit, Type: domain.TypeString, Description: "Unit of measurement (e.g., MG/L, DEG C, NTU)"},
		},
		Optional: []Column{
			{Name: domain.ColQualifier, Type: domain.TypeString, Description: "Data qualifier flag (e.g., < for below detection limit)"},
			{Name: domain.ColQAStatus, Type: domain.TypeString, Description: "Quality assurance status code (P=Provisional, V=Validated)"},
			{Name: domain.ColSampleID, Type: domain.TypeString, Description: "Unique identifier for the sample"},
		},
		Mapping: []Mapping{
			{Raw: "site_no", Normalized: domain.ColStationID},
			{Raw: "sample_datetime", Normalized: domain.ColTimestamp},
			{Raw: "variable", Normalized: domain.ColParameter},
			{Raw: "value", Normalized: domain.ColValue},
			{Raw: "unit", Normalized: domain.ColUnit},
			{Raw: "qualifier_flag", Normalized: domain.ColQualifier},
			{Raw: "qa_status", Normalized: domain.ColQAStatus},
			{Raw: "sample_id", Normalized: domain.ColSampleID},
		},
		Constraints: map[string]Constraints{
			domain.ColStationID: {
				NotNull:   true,
				Pattern:   stationIDPattern,
				MaxLength: 50,
				Code:      domain.CodeInvalidStationID,
			},
			domain.ColTimestamp: {
				NotNull:   true,
				NotBefore: defaultNotBefore,
				Before:    defaultBefore,
			},
			domain.ColParameter: {MaxLength: 200},
			domain.ColValue:     {Min: &minValue, Max: &maxValue},
			domain.ColUnit:      {MaxLength: 50},
			domain.ColQualifier: {
				Allowed:   []string{"<", ">", "~", "E", "U"},
				MaxLength: 10,
				Code:      domain.CodeInvalidQualifierCode,
			},
			domain.ColQAStatus: {
				Allowed: []string{"P", "V", "R", "E"},
				Code:    domain.CodeInvalidQAStatus,
			},
		},
		DuplicateKey: []string{domain.ColStationID, domain.ColTimestamp, domain.ColParameter},
		TimeLayouts:  DefaultTimeLayouts,
		NullTokens:   DefaultNullTokens,
	}
}
