package validate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// QualityOptions parameterize QualityPass.
type QualityOptions struct {
	// Now is the reference time for the future-timestamp check.
	Now         time.Time
	CheckFuture bool

	NullRateWarn  float64
	NullRateError float64
}

// QualityPass returns a pass that applies the null-rate policy, numeric
// bounds and temporal bounds. A null in a mandatory datetime column is an
// INVALID_DATETIME error.
func QualityPass(opts QualityOptions) Pass {
	return func(ds *domain.Dataset, c *schema.Contract) []domain.ValidationIssue {
		var issues []domain.ValidationIssue

		issues = append(issues, nullRateIssues(ds, c, opts)...)

		type rule struct {
			name      string
			typ       domain.ColumnType
			cs        schema.Constraints
			mandatory bool
		}
		var rules []rule
		for _, col := range ds.Columns {
			typ, _ := c.TypeOf(col)
			cs, _ := c.ConstraintsFor(col)
			switch typ {
			case domain.TypeNumber:
				if cs.Min == nil && cs.Max == nil {
					continue
				}
			case domain.TypeDatetime:
			default:
				continue
			}
			rules = append(rules, rule{name: col, typ: typ, cs: cs, mandatory: mandatoryDatetime(c, col)})
		}

		for _, r := range ds.Records {
			for _, ru := range rules {
				cell := r.Cells[ru.name]
				if ru.typ == domain.TypeNumber {
					if issue, ok := checkRange(c, r, ru.name, cell, ru.cs); ok {
						issues = append(issues, issue)
					}
					continue
				}
				if issue, ok := checkTime(c, r, ru.name, cell, ru.cs, ru.mandatory, opts); ok {
					issues = append(issues, issue)
				}
			}
		}
		return issues
	}
}

func nullRateIssues(ds *domain.Dataset, c *schema.Contract, opts QualityOptions) []domain.ValidationIssue {
	if len(ds.Records) == 0 || (opts.NullRateWarn <= 0 && opts.NullRateError <= 0) {
		return nil
	}
	rates := NullRates(ds, c)
	var issues []domain.ValidationIssue
	for _, col := range ds.Columns {
		rate := rates[col]
		var sev domain.Severity
		switch {
		case opts.NullRateError > 0 && rate > opts.NullRateError:
			sev = domain.SeverityError
		case opts.NullRateWarn > 0 && rate > opts.NullRateWarn:
			sev = domain.SeverityWarning
		default:
			continue
		}
		issues = append(issues, columnIssue(sev, domain.CategoryQuality, domain.CodeHighNullRate, col,
			fmt.Sprintf("%s is null in %.1f%% of rows", rawName(c, col), rate*100)))
	}
	return issues
}

func checkRange(c *schema.Contract, r domain.NormalizedRecord, col string, cell domain.Cell, cs schema.Constraints) (domain.ValidationIssue, bool) {
	if cell.Null() {
		return domain.ValidationIssue{}, false
	}
	low := cs.Min != nil && cell.Num < *cs.Min
	high := cs.Max != nil && cell.Num > *cs.Max
	if !low && !high {
		return domain.ValidationIssue{}, false
	}
	return rowIssue(domain.SeverityError, domain.CategoryQuality, domain.CodeValueOutOfRange, r, col,
		fmt.Sprintf("%s %s is outside %s", rawName(c, col), strconv.FormatFloat(cell.Num, 'g', -1, 64), boundsText(cs))), true
}

func boundsText(cs schema.Constraints) string {
	lo, hi := "-inf", "+inf"
	if cs.Min != nil {
		lo = strconv.FormatFloat(*cs.Min, 'g', -1, 64)
	}
	if cs.Max != nil {
		hi = strconv.FormatFloat(*cs.Max, 'g', -1, 64)
	}
	return "[" + lo + ", " + hi + "]"
}

func checkTime(c *schema.Contract, r domain.NormalizedRecord, col string, cell domain.Cell, cs schema.Constraints, mandatory bool, opts QualityOptions) (domain.ValidationIssue, bool) {
	if cell.Null() {
		if !mandatory {
			return domain.ValidationIssue{}, false
		}
		msg := fmt.Sprintf("%s is empty", rawName(c, col))
		if cell.CoercionFailed() {
			msg = fmt.Sprintf("%s %q is not a recognized datetime", rawName(c, col), cell.Raw)
		}
		return rowIssue(domain.SeverityError, domain.CategoryQuality, domain.CodeInvalidDatetime, r, col, msg), true
	}

	t := cell.Time
	if (!cs.NotBefore.IsZero() && t.Before(cs.NotBefore)) || (!cs.Before.IsZero() && !t.Before(cs.Before)) {
		return rowIssue(domain.SeverityError, domain.CategoryQuality, domain.CodeTimestampOutOfRange, r, col,
			fmt.Sprintf("%s %s is outside %s", rawName(c, col), formatTime(t), windowText(cs))), true
	}
	if opts.CheckFuture && !opts.Now.IsZero() && t.After(opts.Now) {
		return rowIssue(domain.SeverityWarning, domain.CategoryQuality, domain.CodeFutureTimestamp, r, col,
			fmt.Sprintf("%s %s is in the future", rawName(c, col), formatTime(t))), true
	}
	return domain.ValidationIssue{}, false
}

func windowText(cs schema.Constraints) string {
	lo, hi := "-inf", "+inf"
	if !cs.NotBefore.IsZero() {
		lo = cs.NotBefore.Format(time.DateOnly)
	}
	if !cs.Before.IsZero() {
		hi = cs.Before.Format(time.DateOnly)
	}
	return "[" + lo + ", " + hi + ")"
}
