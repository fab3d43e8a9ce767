package domain

// ReportSummary carries dataset-level statistics alongside the issue lists.
type ReportSummary struct {
	RowCount               int                `json:"row_count"`
	DateRange              *DateRange         `json:"date_range"`
	NullRatesByColumn      map[string]float64 `json:"null_rates_by_column"`
	DistinctStationCount   int                `json:"distinct_station_count"`
	DistinctParameterCount int                `json:"distinct_parameter_count"`
	IssueCountsByCategory  map[Category]int   `json:"issue_counts_by_category"`
	IssueCountsBySeverity  map[Severity]int   `json:"issue_counts_by_severity"`
	UnmappedColumns        []string           `json:"unmapped_columns"`
}

// ValidationReport is the outcome of one validation run. Errors and Warnings
// are never truncated. Passed is true exactly when Errors is empty.
type ValidationReport struct {
	Passed   bool              `json:"passed"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
	Summary  ReportSummary     `json:"summary"`
}

// Issues returns errors followed by warnings.
func (r ValidationReport) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// CountCode returns how many issues carry code.
func (r ValidationReport) CountCode(code string) int {
	n := 0
	for _, i := range r.Errors {
		if i.Code == code {
			n++
		}
	}
	for _, i := range r.Warnings {
		if i.Code == code {
			n++
		}
	}
	return n
}
