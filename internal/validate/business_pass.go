package validate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// BusinessRulePass reports duplicate measurements and code-set, pattern,
// not-null and length violations. Every business-rule issue is a warning.
//
// Each cell is checked against its rules in the order not-null, allowed
// codes, pattern, length, and reports only the first one it breaks.
// Duplicates are keyed by the contract's duplicate key; the first occurrence
// is canonical and each later one points back at it. Records with a null key
// component are never duplicates.
func BusinessRulePass(ds *domain.Dataset, c *schema.Contract) []domain.ValidationIssue {
	var issues []domain.ValidationIssue

	type rule struct {
		name string
		typ  domain.ColumnType
		cs   schema.Constraints
	}
	var rules []rule
	for _, col := range presentConstrained(ds, c) {
		typ, _ := c.TypeOf(col)
		if typ == domain.TypeDatetime {
			continue
		}
		cs, _ := c.ConstraintsFor(col)
		if !cs.NotNull && len(cs.Allowed) == 0 && cs.Pattern == nil && cs.MaxLength == 0 {
			continue
		}
		rules = append(rules, rule{name: col, typ: typ, cs: cs})
	}

	key := c.DuplicateKey()
	checkDuplicates := len(key) > 0
	for _, col := range key {
		if !ds.HasColumn(col) {
			checkDuplicates = false
		}
	}
	firstSeen := make(map[string]int)

	for _, r := range ds.Records {
		for _, ru := range rules {
			if issue, ok := checkCell(c, r, ru.name, r.Cells[ru.name], ru.cs); ok {
				issues = append(issues, issue)
			}
		}

		if !checkDuplicates {
			continue
		}
		k, ok := duplicateKey(r, key)
		if !ok {
			continue
		}
		first, seen := firstSeen[k]
		if !seen {
			firstSeen[k] = r.Index
			continue
		}
		issue := rowIssue(domain.SeverityWarning, domain.CategoryBusinessRule, domain.CodeDuplicateRecord, r, "",
			fmt.Sprintf("duplicate of row %d on (%s)", first, strings.Join(key, ", ")))
		issue.Location.DuplicateOf = &first
		issues = append(issues, issue)
	}
	return issues
}

func checkCell(c *schema.Contract, r domain.NormalizedRecord, col string, cell domain.Cell, cs schema.Constraints) (domain.ValidationIssue, bool) {
	warn := func(code, msg string) (domain.ValidationIssue, bool) {
		return rowIssue(domain.SeverityWarning, domain.CategoryBusinessRule, code, r, col, msg), true
	}

	if cell.Null() {
		// Failed coercions are already reported as type mismatches.
		if cs.NotNull && !cell.CoercionFailed() {
			return warn(cs.Code, fmt.Sprintf("%s is empty", rawName(c, col)))
		}
		return domain.ValidationIssue{}, false
	}

	text := cell.Text()
	if len(cs.Allowed) > 0 && !slices.Contains(cs.Allowed, text) {
		return warn(cs.Code, fmt.Sprintf("%s %q is not one of %s", rawName(c, col), text, strings.Join(cs.Allowed, ", ")))
	}
	if cs.Pattern != nil && !cs.Pattern.MatchString(text) {
		return warn(cs.Code, fmt.Sprintf("%s %q does not match %s", rawName(c, col), text, cs.Pattern))
	}
	if cs.MaxLength > 0 && utf8.RuneCountInString(text) > cs.MaxLength {
		code := cs.Code
		if code == "" {
			code = domain.CodeValueTooLong
		}
		return warn(code, fmt.Sprintf("%s is %d characters long, limit is %d",
			rawName(c, col), utf8.RuneCountInString(text), cs.MaxLength))
	}
	return domain.ValidationIssue{}, false
}

// duplicateKey builds the identity of r from the key columns. ok is false
// when any component is null.
func duplicateKey(r domain.NormalizedRecord, key []string) (string, bool) {
	var b strings.Builder
	for i, col := range key {
		cell := r.Cells[col]
		if cell.Null() {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch cell.Type {
		case domain.TypeDatetime:
			b.WriteString(cell.Time.UTC().Format(time.RFC3339Nano))
		case domain.TypeNumber:
			b.WriteString(strconv.FormatFloat(cell.Num, 'g', -1, 64))
		default:
			b.WriteString(cell.Str)
		}
	}
	return b.String(), true
}
