package domain

import "fmt"

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category groups issues by the validation pass that produced them.
type Category string

const (
	CategorySchema       Category = "schema"
	CategoryQuality      Category = "quality"
	CategoryBusinessRule Category = "business_rule"
)

// Issue codes. Codes are stable identifiers that callers and test suites
// match on; messages are free text.
const (
	CodeMissingRequiredColumn = "MISSING_REQUIRED_COLUMN"
	CodeTypeMismatch          = "TYPE_MISMATCH"
	CodeEmptyDataset          = "EMPTY_DATASET"
	CodeValueOutOfRange       = "VALUE_OUT_OF_RANGE"
	CodeTimestampOutOfRange   = "TIMESTAMP_OUT_OF_RANGE"
	CodeInvalidDatetime       = "INVALID_DATETIME"
	CodeFutureTimestamp       = "FUTURE_TIMESTAMP"
	CodeHighNullRate          = "HIGH_NULL_RATE"
	CodeDuplicateRecord       = "DUPLICATE_RECORD"
	CodeInvalidStationID      = "INVALID_STATION_ID"
	CodeInvalidQualifierCode  = "INVALID_QUALIFIER_CODE"
	CodeInvalidQAStatus       = "INVALID_QA_STATUS"
	CodeValueTooLong          = "VALUE_TOO_LONG"
)

// Location points an issue back at the data. All fields are optional;
// column-level issues carry only Column.
type Location struct {
	Row         *int   `json:"row,omitempty"`  // 0-based record index
	Line        int    `json:"line,omitempty"` // source line number
	Column      string `json:"column,omitempty"`
	StationID   string `json:"station_id,omitempty"`
	DuplicateOf *int   `json:"duplicate_of,omitempty"` // row of the canonical occurrence
}

// ValidationIssue is one finding of a validation pass.
type ValidationIssue struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

func (i ValidationIssue) String() string {
	loc := ""
	if i.Location.Row != nil {
		loc = fmt.Sprintf(" [row %d", *i.Location.Row)
		if i.Location.Column != "" {
			loc += " " + i.Location.Column
		}
		loc += "]"
	} else if i.Location.Column != "" {
		loc = " [" + i.Location.Column + "]"
	}
	return fmt.Sprintf("%s %s%s: %s", i.Severity, i.Code, loc, i.Message)
}

// RowLocation builds a Location for a record and column.
func RowLocation(r NormalizedRecord, column string) Location {
	row := r.Index
	return Location{
		Row:       &row,
		Line:      r.Line,
		Column:    column,
		StationID: r.StationID(),
	}
}
