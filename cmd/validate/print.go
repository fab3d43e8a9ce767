package main

import (
	"fmt"
	"io"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

// phase is one validation pass as shown in the terminal report.
type phase struct {
	name     string
	category domain.Category
}

var phases = []phase{
	{name: "Schema", category: domain.CategorySchema},
	{name: "Data quality", category: domain.CategoryQuality},
	{name: "Business rules", category: domain.CategoryBusinessRule},
}

type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer, color bool) *printer {
	return &printer{w: w, color: color}
}

func (p *printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (p *printer) printResult(res *pipeline.Result) {
	rep := res.Report
	fmt.Fprintf(p.w, "=== %s (run %s) ===\n", res.Source, res.RunID)
	fmt.Fprintf(p.w, "Rows: %d  Stations: %d  Parameters: %d  Range: %s\n",
		rep.Summary.RowCount, rep.Summary.DistinctStationCount, rep.Summary.DistinctParameterCount,
		formatRange(rep.Summary.DateRange))
	if len(rep.Summary.UnmappedColumns) > 0 {
		fmt.Fprintf(p.w, "Unmapped columns: %v\n", rep.Summary.UnmappedColumns)
	}
	fmt.Fprintln(p.w)

	for _, ph := range phases {
		errs, warns := countCategory(rep.Errors, ph.category), countCategory(rep.Warnings, ph.category)
		status := p.paint("32", "PASS")
		if errs > 0 {
			status = p.paint("31", fmt.Sprintf("FAIL (%d errors)", errs))
		}
		if warns > 0 {
			status += fmt.Sprintf(" (%d warnings)", warns)
		}
		fmt.Fprintf(p.w, "  %-42s %s\n", ph.name, status)
	}

	p.printIssues("errors", rep.Errors)
	p.printIssues("warnings", rep.Warnings)
	fmt.Fprintln(p.w)
}

func (p *printer) printIssues(title string, issues []domain.ValidationIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(p.w, "\n--- %s ---\n", title)
	for i, issue := range issues {
		fmt.Fprintf(p.w, "  [%d] %s\n", i+1, issue)
	}
}

func (p *printer) printVerdict(passed bool) {
	if passed {
		fmt.Fprintln(p.w, "All validations passed.")
		return
	}
	fmt.Fprintln(p.w, "Validation FAILED.")
}

func countCategory(issues []domain.ValidationIssue, c domain.Category) int {
	n := 0
	for _, i := range issues {
		if i.Category == c {
			n++
		}
	}
	return n
}
