package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
)

// SchemaDefinitionError reports a malformed contract definition.
type SchemaDefinitionError struct {
	Problems []string
}

func (e *SchemaDefinitionError) Error() string {
	return "invalid schema definition: " + strings.Join(e.Problems, "; ")
}

// Contract is an immutable, validated schema contract. It is safe to share
// across goroutines; no method mutates it.
type Contract struct {
	def Definition

	rawToNorm  map[string]string
	normToRaw  map[string]string
	types      map[string]domain.ColumnType
	required   map[string]bool
	rawKnown   map[string]bool
	descr      map[string]string
	nullTokens map[string]bool
	normalized []string
}

// New validates def and builds a Contract from it. def is deep-copied, so
// later edits to the caller's value do not leak into the contract.
func New(def Definition) (*Contract, error) {
	def = cloneDefinition(def)
	c := &Contract{
		def:        def,
		rawToNorm:  make(map[string]string, len(def.Mapping)),
		normToRaw:  make(map[string]string, len(def.Mapping)),
		types:      make(map[string]domain.ColumnType),
		required:   make(map[string]bool),
		rawKnown:   make(map[string]bool),
		descr:      make(map[string]string),
		nullTokens: make(map[string]bool, len(def.NullTokens)),
	}

	var problems []string
	addProblem := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, col := range def.RawRequired {
		c.rawKnown[col.Name] = true
	}
	for _, col := range def.RawOptional {
		c.rawKnown[col.Name] = true
	}

	for _, group := range []struct {
		cols     []Column
		required bool
	}{{def.Required, true}, {def.Optional, false}} {
		for _, col := range group.cols {
			if col.Name == "" {
				addProblem("normalized column with empty name")
				continue
			}
			if _, dup := c.types[col.Name]; dup {
				addProblem("normalized column %q declared twice", col.Name)
				continue
			}
			switch col.Type {
			case domain.TypeString, domain.TypeNumber, domain.TypeDatetime:
			default:
				addProblem("normalized column %q has unknown type %q", col.Name, col.Type)
			}
			c.types[col.Name] = col.Type
			c.required[col.Name] = group.required
			c.descr[col.Name] = col.Description
			c.normalized = append(c.normalized, col.Name)
		}
	}
	for _, col := range append(slices.Clone(def.RawRequired), def.RawOptional...) {
		if _, ok := c.descr[col.Name]; !ok {
			c.descr[col.Name] = col.Description
		}
	}

	for _, m := range def.Mapping {
		if !c.rawKnown[m.Raw] {
			addProblem("mapping source %q is not a declared raw column", m.Raw)
		}
		if _, ok := c.types[m.Normalized]; !ok {
			addProblem("mapping target %q is not a declared normalized column", m.Normalized)
		}
		if _, dup := c.rawToNorm[m.Raw]; dup {
			addProblem("raw column %q mapped more than once", m.Raw)
			continue
		}
		if prev, dup := c.normToRaw[m.Normalized]; dup {
			addProblem("normalized column %q has more than one raw source (%q, %q)", m.Normalized, prev, m.Raw)
			continue
		}
		c.rawToNorm[m.Raw] = m.Normalized
		c.normToRaw[m.Normalized] = m.Raw
	}

	for _, col := range def.RawRequired {
		if _, ok := c.rawToNorm[col.Name]; !ok {
			addProblem("required raw column %q has no mapping target", col.Name)
		}
	}
	for _, col := range def.Required {
		if _, ok := c.normToRaw[col.Name]; !ok {
			addProblem("required normalized column %q has no raw source", col.Name)
		}
	}

	for _, name := range sortedKeys(def.Constraints) {
		cs := def.Constraints[name]
		typ, ok := c.types[name]
		if !ok {
			addProblem("constraints reference undeclared column %q", name)
			continue
		}
		if (cs.Min != nil || cs.Max != nil) && typ != domain.TypeNumber {
			addProblem("column %q has numeric bounds but type %s", name, typ)
		}
		if cs.Min != nil && cs.Max != nil && *cs.Min > *cs.Max {
			addProblem("column %q has min %g above max %g", name, *cs.Min, *cs.Max)
		}
		if (!cs.NotBefore.IsZero() || !cs.Before.IsZero()) && typ != domain.TypeDatetime {
			addProblem("column %q has temporal bounds but type %s", name, typ)
		}
		if (len(cs.Allowed) > 0 || cs.Pattern != nil) && cs.Code == "" {
			addProblem("column %q has a code-set or pattern rule without an issue code", name)
		}
		if cs.NotNull && typ != domain.TypeDatetime && cs.Code == "" {
			addProblem("column %q is not-null without an issue code", name)
		}
	}

	for _, name := range def.DuplicateKey {
		if _, ok := c.types[name]; !ok {
			addProblem("duplicate key references undeclared column %q", name)
		}
	}
	if len(def.TimeLayouts) == 0 {
		addProblem("no datetime layouts configured")
	}
	for _, tok := range def.NullTokens {
		c.nullTokens[strings.TrimSpace(tok)] = true
	}
	c.nullTokens[""] = true

	if len(problems) > 0 {
		return nil, &SchemaDefinitionError{Problems: problems}
	}
	return c, nil
}

// MustNew is New for definitions known to be valid at compile time.
func MustNew(def Definition) *Contract {
	c, err := New(def)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultContract = MustNew(DefaultDefinition())

// Default returns the shared built-in ECCC contract.
func Default() *Contract { return defaultContract }

// RawRequiredColumns lists the columns a raw source must carry.
func (c *Contract) RawRequiredColumns() []string { return columnNames(c.def.RawRequired) }

// RawOptionalColumns lists recognized raw columns whose absence is not an error.
func (c *Contract) RawOptionalColumns() []string { return columnNames(c.def.RawOptional) }

// NormalizedRequiredColumns lists the required normalized columns in order.
func (c *Contract) NormalizedRequiredColumns() []string { return columnNames(c.def.Required) }

// NormalizedColumns lists required then optional normalized columns.
func (c *Contract) NormalizedColumns() []string { return slices.Clone(c.normalized) }

// MapColumnName returns the normalized name for a raw column, or false when
// the raw column is unrecognized or recognized but not carried forward.
func (c *Contract) MapColumnName(raw string) (string, bool) {
	n, ok := c.rawToNorm[raw]
	return n, ok
}

// RawColumnFor returns the raw source of a normalized column.
func (c *Contract) RawColumnFor(normalized string) (string, bool) {
	r, ok := c.normToRaw[normalized]
	return r, ok
}

// IsKnownRaw reports whether raw is declared in the raw schema.
func (c *Contract) IsKnownRaw(raw string) bool { return c.rawKnown[raw] }

// TypeOf returns the expected type of a normalized column.
func (c *Contract) TypeOf(column string) (domain.ColumnType, bool) {
	t, ok := c.types[column]
	return t, ok
}

// IsRequired reports whether column is a required normalized column.
func (c *Contract) IsRequired(column string) bool { return c.required[column] }

// ConstraintsFor returns the rule set of column, or false when it has none.
func (c *Contract) ConstraintsFor(column string) (Constraints, bool) {
	cs, ok := c.def.Constraints[column]
	if !ok {
		return Constraints{}, false
	}
	return cloneConstraints(cs), true
}

// DuplicateKey lists the columns identifying a measurement.
func (c *Contract) DuplicateKey() []string { return slices.Clone(c.def.DuplicateKey) }

// TimeLayouts lists accepted datetime layouts in trial order.
func (c *Contract) TimeLayouts() []string { return slices.Clone(c.def.TimeLayouts) }

// IsNullToken reports whether trimmed cell text means "no value".
func (c *Contract) IsNullToken(s string) bool { return c.nullTokens[s] }

// Describe returns the human description of a raw or normalized column.
func (c *Contract) Describe(column string) string {
	if d := c.descr[column]; d != "" {
		return d
	}
	return "Column: " + column
}

func columnNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col.Name
	}
	return out
}

func sortedKeys(m map[string]Constraints) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func cloneDefinition(def Definition) Definition {
	out := Definition{
		RawRequired:  slices.Clone(def.RawRequired),
		RawOptional:  slices.Clone(def.RawOptional),
		Required:     slices.Clone(def.Required),
		Optional:     slices.Clone(def.Optional),
		Mapping:      slices.Clone(def.Mapping),
		DuplicateKey: slices.Clone(def.DuplicateKey),
		TimeLayouts:  slices.Clone(def.TimeLayouts),
		NullTokens:   slices.Clone(def.NullTokens),
		Constraints:  make(map[string]Constraints, len(def.Constraints)),
	}
	for name, cs := range def.Constraints {
		out.Constraints[name] = cloneConstraints(cs)
	}
	return out
}

func cloneConstraints(cs Constraints) Constraints {
	cs.Allowed = slices.Clone(cs.Allowed)
	if cs.Min != nil {
		v := *cs.Min
		cs.Min = &v
	}
	if cs.Max != nil {
		v := *cs.Max
		cs.Max = &v
	}
	return cs
}
