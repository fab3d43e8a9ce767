package domain

import (
	"sort"
	"time"
)

// DateRange is the inclusive span of parsed timestamps.
type DateRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Summary is the Loader's lightweight description of a normalized set.
type Summary struct {
	RowCount   int        `json:"row_count"`
	DateRange  *DateRange `json:"date_range"` // nil when no timestamp parsed
	StationIDs []string   `json:"station_ids"`
	Parameters []string   `json:"parameters"`
}

// Summarize computes row count, timestamp span, and the sorted distinct
// station ids and parameters in a single pass. Null timestamps and empty
// identifiers are ignored.
func Summarize(records []NormalizedRecord) Summary {
	s := Summary{
		RowCount:   len(records),
		StationIDs: []string{},
		Parameters: []string{},
	}
	stations := make(map[string]struct{})
	params := make(map[string]struct{})

	for _, r := range records {
		if ts, ok := r.Timestamp(); ok {
			if s.DateRange == nil {
				s.DateRange = &DateRange{Min: ts, Max: ts}
			} else {
				if ts.Before(s.DateRange.Min) {
					s.DateRange.Min = ts
				}
				if ts.After(s.DateRange.Max) {
					s.DateRange.Max = ts
				}
			}
		}
		if id := r.StationID(); id != "" {
			stations[id] = struct{}{}
		}
		if p := r.Parameter(); p != "" {
			params[p] = struct{}{}
		}
	}

	for id := range stations {
		s.StationIDs = append(s.StationIDs, id)
	}
	for p := range params {
		s.Parameters = append(s.Parameters, p)
	}
	sort.Strings(s.StationIDs)
	sort.Strings(s.Parameters)
	return s
}
