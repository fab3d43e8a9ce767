package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// fileDefinition is the YAML form of a Definition. Every section is
// optional; a section present in the file replaces the built-in one.
type fileDefinition struct {
	RawRequired  []fileColumn               `yaml:"raw_required"`
	RawOptional  []fileColumn               `yaml:"raw_optional"`
	Required     []fileColumn               `yaml:"required"`
	Optional     []fileColumn               `yaml:"optional"`
	Mapping      []fileMapping              `yaml:"mapping"`
	Constraints  map[string]fileConstraints `yaml:"constraints"`
	DuplicateKey []string                   `yaml:"duplicate_key"`
	TimeLayouts  []string                   `yaml:"time_layouts"`
	NullTokens   []string                   `yaml:"null_tokens"`
}

type fileColumn struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type fileMapping struct {
	Raw        string `yaml:"raw"`
	Normalized string `yaml:"normalized"`
}

type fileConstraints struct {
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	NotBefore string   `yaml:"not_before"`
	Before    string   `yaml:"before"`
	NotNull   bool     `yaml:"not_null"`
	Allowed   []string `yaml:"allowed"`
	Pattern   string   `yaml:"pattern"`
	MaxLength int      `yaml:"max_length"`
	Code      string   `yaml:"code"`
}

// LoadFile reads a YAML contract from path and validates it.
func LoadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema contract: %w", err)
	}
	return Parse(data)
}

// FromPath returns the built-in contract when path is empty and the
// contract loaded from path otherwise.
func FromPath(path string) (*Contract, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Parse decodes a YAML contract, filling absent sections from
// DefaultDefinition, and validates the result.
func Parse(data []byte) (*Contract, error) {
	var fd fileDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fd); err != nil && !errors.Is(err, io.EOF) {
		return nil, &SchemaDefinitionError{Problems: []string{"decode yaml: " + err.Error()}}
	}

	def := DefaultDefinition()
	var problems []string

	if fd.RawRequired != nil {
		def.RawRequired = toColumns(fd.RawRequired)
	}
	if fd.RawOptional != nil {
		def.RawOptional = toColumns(fd.RawOptional)
	}
	if fd.Required != nil {
		def.Required = toColumns(fd.Required)
	}
	if fd.Optional != nil {
		def.Optional = toColumns(fd.Optional)
	}
	if fd.Mapping != nil {
		def.Mapping = make([]Mapping, len(fd.Mapping))
		for i, m := range fd.Mapping {
			def.Mapping[i] = Mapping(m)
		}
	}
	if fd.Constraints != nil {
		def.Constraints = make(map[string]Constraints, len(fd.Constraints))
		for name, fc := range fd.Constraints {
			cs, err := fc.toConstraints()
			if err != nil {
				problems = append(problems, fmt.Sprintf("constraints for %q: %v", name, err))
				continue
			}
			def.Constraints[name] = cs
		}
	}
	if fd.DuplicateKey != nil {
		def.DuplicateKey = fd.DuplicateKey
	}
	if fd.TimeLayouts != nil {
		def.TimeLayouts = fd.TimeLayouts
	}
	if fd.NullTokens != nil {
		def.NullTokens = fd.NullTokens
	}

	if len(problems) > 0 {
		return nil, &SchemaDefinitionError{Problems: problems}
	}
	return New(def)
}

func toColumns(in []fileColumn) []Column {
	out := make([]Column, len(in))
	for i, c := range in {
		out[i] = Column{Name: c.Name, Type: domain.ColumnType(c.Type), Description: c.Description}
	}
	return out
}

func (fc fileConstraints) toConstraints() (Constraints, error) {
	cs := Constraints{
		Min:       fc.Min,
		Max:       fc.Max,
		NotNull:   fc.NotNull,
		Allowed:   fc.Allowed,
		MaxLength: fc.MaxLength,
		Code:      fc.Code,
	}
	var err error
	if fc.NotBefore != "" {
		if cs.NotBefore, err = time.Parse(time.DateOnly, fc.NotBefore); err != nil {
			return Constraints{}, fmt.Errorf("not_before: %w", err)
		}
	}
	if fc.Before != "" {
		if cs.Before, err = time.Parse(time.DateOnly, fc.Before); err != nil {
			return Constraints{}, fmt.Errorf("before: %w", err)
		}
	}
	if fc.Pattern != "" {
		if cs.Pattern, err = regexp.Compile(`^(?:` + fc.Pattern + `)$`); err != nil {
			return Constraints{}, fmt.Errorf("pattern: %w", err)
		}
	}
	return cs, nil
}
