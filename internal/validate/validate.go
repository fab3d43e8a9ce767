// Package validate checks normalized datasets against a schema contract and
// assembles validation reports.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// Pass is one self-contained validation pass. Passes are pure: they read the
// dataset and contract and return issues in row order.
type Pass func(ds *domain.Dataset, c *schema.Contract) []domain.ValidationIssue

// ValidationEngineError reports a dataset that cannot be iterated as a
// well-formed record sequence. Data problems are never engine errors.
type ValidationEngineError struct {
	Err error
}

func (e *ValidationEngineError) Error() string {
	return "validation engine: " + e.Err.Error()
}

func (e *ValidationEngineError) Unwrap() error { return e.Err }

// Options tune the data-quality pass.
type Options struct {
	// CheckFuture flags timestamps later than the package clock.
	CheckFuture bool

	// NullRateWarn and NullRateError are null-rate thresholds in (0, 1].
	// A present column whose null rate exceeds a threshold gets HIGH_NULL_RATE.
	// Zero disables the threshold.
	NullRateWarn  float64
	NullRateError float64
}

// DefaultOptions enables the future-timestamp check and leaves null rates
// informational.
func DefaultOptions() Options {
	return Options{CheckFuture: true}
}

// Validator runs the schema, quality and business-rule passes.
type Validator struct {
	contract *schema.Contract
	opts     Options
}

// New creates a Validator for contract.
func New(contract *schema.Contract, opts Options) *Validator {
	return &Validator{contract: contract, opts: opts}
}

// Validate runs every pass over ds and folds the results into a report.
// The report is built fresh on each call; ds is not modified.
func (v *Validator) Validate(ds *domain.Dataset) (domain.ValidationReport, error) {
	if v.contract == nil {
		return domain.ValidationReport{}, &ValidationEngineError{Err: errors.New("no schema contract")}
	}
	if err := checkShape(ds); err != nil {
		return domain.ValidationReport{}, &ValidationEngineError{Err: err}
	}

	passes := []Pass{
		SchemaPass,
		QualityPass(QualityOptions{
			Now:           domain.Now(),
			CheckFuture:   v.opts.CheckFuture,
			NullRateWarn:  v.opts.NullRateWarn,
			NullRateError: v.opts.NullRateError,
		}),
		BusinessRulePass,
	}

	report := domain.ValidationReport{
		Errors:   []domain.ValidationIssue{},
		Warnings: []domain.ValidationIssue{},
	}
	byCategory := map[domain.Category]int{
		domain.CategorySchema:       0,
		domain.CategoryQuality:      0,
		domain.CategoryBusinessRule: 0,
	}
	bySeverity := map[domain.Severity]int{
		domain.SeverityError:   0,
		domain.SeverityWarning: 0,
	}
	for _, pass := range passes {
		for _, issue := range pass(ds, v.contract) {
			if issue.Severity == domain.SeverityError {
				report.Errors = append(report.Errors, issue)
			} else {
				report.Warnings = append(report.Warnings, issue)
			}
			byCategory[issue.Category]++
			bySeverity[issue.Severity]++
		}
	}

	s := domain.Summarize(ds.Records)
	report.Summary = domain.ReportSummary{
		RowCount:               s.RowCount,
		DateRange:              s.DateRange,
		NullRatesByColumn:      NullRates(ds, v.contract),
		DistinctStationCount:   len(s.StationIDs),
		DistinctParameterCount: len(s.Parameters),
		IssueCountsByCategory:  byCategory,
		IssueCountsBySeverity:  bySeverity,
		UnmappedColumns:        append([]string{}, ds.Unmapped...),
	}
	report.Passed = len(report.Errors) == 0
	return report, nil
}

// checkShape verifies that records are indexed in order and that every
// record carries a key for each column the dataset declares present.
func checkShape(ds *domain.Dataset) error {
	if ds == nil {
		return errors.New("nil dataset")
	}
	for i, r := range ds.Records {
		if r.Index != i {
			return fmt.Errorf("record at position %d has index %d", i, r.Index)
		}
		if r.Cells == nil {
			return fmt.Errorf("record %d has no cells", i)
		}
		for _, col := range ds.Columns {
			if _, ok := r.Cells[col]; !ok {
				return fmt.Errorf("record %d lacks present column %q", i, col)
			}
		}
	}
	return nil
}

// NullRates returns the proportion of null cells for every normalized
// column in the contract. Columns absent from the source count as fully
// null. An empty dataset has a rate of 0 everywhere.
func NullRates(ds *domain.Dataset, c *schema.Contract) map[string]float64 {
	cols := c.NormalizedColumns()
	rates := make(map[string]float64, len(cols))
	n := len(ds.Records)
	for _, col := range cols {
		switch {
		case n == 0:
			rates[col] = 0
		case !ds.HasColumn(col):
			rates[col] = 1
		default:
			nulls := 0
			for _, r := range ds.Records {
				if r.Cells[col].Null() {
					nulls++
				}
			}
			rates[col] = float64(nulls) / float64(n)
		}
	}
	return rates
}

// rawName renders a normalized column with its raw source for messages.
func rawName(c *schema.Contract, col string) string {
	if raw, ok := c.RawColumnFor(col); ok && raw != col {
		return fmt.Sprintf("%s (source column %s)", col, raw)
	}
	return col
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func columnIssue(sev domain.Severity, cat domain.Category, code, column, msg string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Severity: sev,
		Category: cat,
		Code:     code,
		Message:  msg,
		Location: domain.Location{Column: column},
	}
}

func rowIssue(sev domain.Severity, cat domain.Category, code string, r domain.NormalizedRecord, column, msg string) domain.ValidationIssue {
	return domain.ValidationIssue{
		Severity: sev,
		Category: cat,
		Code:     code,
		Message:  msg,
		Location: domain.RowLocation(r, column),
	}
}

// mandatoryDatetime reports whether a null in col is an INVALID_DATETIME
// error rather than a type warning.
func mandatoryDatetime(c *schema.Contract, col string) bool {
	typ, _ := c.TypeOf(col)
	if typ != domain.TypeDatetime {
		return false
	}
	cs, ok := c.ConstraintsFor(col)
	return ok && cs.NotNull
}

// presentConstrained lists the dataset's present columns that carry
// constraints, in dataset column order.
func presentConstrained(ds *domain.Dataset, c *schema.Contract) []string {
	out := make([]string, 0, len(ds.Columns))
	for _, col := range ds.Columns {
		if _, ok := c.ConstraintsFor(col); ok {
			out = append(out, col)
		}
	}
	return slices.Clip(out)
}
