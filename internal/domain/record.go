package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Normalized column names. These are the stable contract consumed by
// downstream feature engineering and anomaly detection.
const (
	ColStationID = "station_id"
	ColTimestamp = "timestamp"
	ColParameter = "parameter"
	ColValue     = "value"
	ColUnit      = "unit"
	ColQualifier = "qualifier"
	ColQAStatus  = "qa_status"
	ColSampleID  = "sample_id"
)

// ColumnType is the semantic type family of a column.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeNumber   ColumnType = "number"
	TypeDatetime ColumnType = "datetime"
)

// RawRecord is one source row keyed by (normalized) raw header name.
// Values are untrimmed strings exactly as read.
type RawRecord struct {
	Index  int // 0-based position among data rows
	Line   int // 1-based line in the source, header is line 1
	Fields map[string]string
}

// RawTable is the container-level result of reading a source.
type RawTable struct {
	Source  string
	Columns []string // header names in source order
	Rows    []RawRecord
}

// HasColumn reports whether the header contains name.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Cell is one coerced value. Exactly one of Str, Num or Time is meaningful,
// selected by Type. A null cell has Valid=false; when the null came from a
// failed coercion, Raw keeps the original text.
type Cell struct {
	Type  ColumnType
	Valid bool
	Str   string
	Num   float64
	Time  time.Time
	Raw   string
}

// Null reports whether the cell carries no usable value.
func (c Cell) Null() bool { return !c.Valid }

// CoercionFailed reports whether the cell is null because its source text
// could not be parsed as the column type.
func (c Cell) CoercionFailed() bool { return !c.Valid && c.Raw != "" }

// Text returns the cell value rendered as a string, or "" when null.
func (c Cell) Text() string {
	if !c.Valid {
		return ""
	}
	switch c.Type {
	case TypeNumber:
		return formatNumber(c.Num)
	case TypeDatetime:
		return c.Time.UTC().Format(time.RFC3339)
	default:
		return c.Str
	}
}

func (c Cell) jsonValue() any {
	if !c.Valid {
		return nil
	}
	switch c.Type {
	case TypeNumber:
		return c.Num
	case TypeDatetime:
		return c.Time.UTC().Format(time.RFC3339)
	default:
		return c.Str
	}
}

// NormalizedRecord is one row after column mapping and type coercion.
// Cells has a key for every normalized column present in the source, even
// when the value is null, so a missing column and an unparsable value stay
// distinguishable.
type NormalizedRecord struct {
	Index int
	Line  int
	Cells map[string]Cell
}

// Cell returns the cell for column and whether the column exists in the record.
func (r NormalizedRecord) Cell(column string) (Cell, bool) {
	c, ok := r.Cells[column]
	return c, ok
}

func (r NormalizedRecord) StationID() string { return r.Cells[ColStationID].Str }
func (r NormalizedRecord) Parameter() string { return r.Cells[ColParameter].Str }
func (r NormalizedRecord) Unit() string      { return r.Cells[ColUnit].Str }

// Timestamp returns the measurement time and whether it parsed.
func (r NormalizedRecord) Timestamp() (time.Time, bool) {
	c := r.Cells[ColTimestamp]
	return c.Time, c.Valid
}

// Value returns the measured value and whether it is non-null.
func (r NormalizedRecord) Value() (float64, bool) {
	c := r.Cells[ColValue]
	return c.Num, c.Valid
}

// MarshalJSON renders the record as a flat object of normalized columns with
// nulls for missing values.
func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Cells))
	for name, c := range r.Cells {
		out[name] = c.jsonValue()
	}
	return json.Marshal(out)
}

// Dataset is the normalized record set produced by one pipeline run.
type Dataset struct {
	Source        string
	Columns       []string // normalized columns present, in contract order
	SourceColumns []string // raw header as read
	Unmapped      []string // raw columns excluded from the normalized view
	Records       []NormalizedRecord
}

// HasColumn reports whether the normalized column was present in the source.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
