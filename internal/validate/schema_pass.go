package validate

import (
	"fmt"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// SchemaPass reports an empty dataset, required columns missing from the
// record shape, and values whose text did not coerce to the column type.
// Unparsable values in a mandatory datetime column are left to the quality
// pass, which reports them as errors.
func SchemaPass(ds *domain.Dataset, c *schema.Contract) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	if len(ds.Records) == 0 {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Category: domain.CategorySchema,
			Code:     domain.CodeEmptyDataset,
			Message:  fmt.Sprintf("source %q contains no data rows", ds.Source),
		})
	}

	for _, col := range c.NormalizedRequiredColumns() {
		if ds.HasColumn(col) {
			continue
		}
		issues = append(issues, columnIssue(domain.SeverityError, domain.CategorySchema,
			domain.CodeMissingRequiredColumn, col,
			fmt.Sprintf("required column %s is missing", rawName(c, col))))
	}

	type typed struct {
		name string
		typ  domain.ColumnType
	}
	var checked []typed
	for _, col := range ds.Columns {
		if mandatoryDatetime(c, col) {
			continue
		}
		typ, _ := c.TypeOf(col)
		checked = append(checked, typed{name: col, typ: typ})
	}

	for _, r := range ds.Records {
		for _, col := range checked {
			cell := r.Cells[col.name]
			if !cell.CoercionFailed() {
				continue
			}
			issues = append(issues, rowIssue(domain.SeverityWarning, domain.CategorySchema,
				domain.CodeTypeMismatch, r, col.name,
				fmt.Sprintf("value %q in %s is not a valid %s", cell.Raw, rawName(c, col.name), col.typ)))
		}
	}
	return issues
}
