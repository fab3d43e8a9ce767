// Package loader turns raw ECCC CSV exports into normalized datasets.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
)

// SourceReadError reports a source that cannot be read as a table at all:
// it could not be opened, has no header, or breaks CSV quoting rules.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source %q: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

var (
	errNoHeader        = errors.New("source has no header row")
	errDuplicateHeader = errors.New("duplicate header column")
)

// Loader reads and normalizes sources against a schema contract. A Loader
// holds no per-run state and may be shared.
type Loader struct {
	contract *schema.Contract
	logger   *slog.Logger
}

// New creates a Loader for contract.
func New(contract *schema.Contract, logger *slog.Logger) *Loader {
	return &Loader{contract: contract, logger: logger}
}

// LoadFile opens path and loads it. The source name is the file's base name.
func (l *Loader) LoadFile(path string) (*domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Source: path, Err: err}
	}
	defer f.Close()
	return l.Load(filepath.Base(path), f)
}

// Load reads every row of r in file order. Rows shorter than the header are
// padded with empty values and extra trailing fields are ignored, so every
// data row yields exactly one RawRecord.
func (l *Loader) Load(source string, r io.Reader) (*domain.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SourceReadError{Source: source, Err: errNoHeader}
	}
	if err != nil {
		return nil, &SourceReadError{Source: source, Err: err}
	}

	names, err := normalizeHeader(header)
	if err != nil {
		return nil, &SourceReadError{Source: source, Err: err}
	}

	table := &domain.RawTable{Source: source}
	for _, n := range names {
		if n != "" {
			table.Columns = append(table.Columns, n)
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SourceReadError{Source: source, Err: err}
		}
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(table.Columns))
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(rec) {
				fields[name] = rec[i]
			} else {
				fields[name] = ""
			}
		}
		table.Rows = append(table.Rows, domain.RawRecord{
			Index:  len(table.Rows),
			Line:   line,
			Fields: fields,
		})
	}

	l.logger.Debug("source loaded", "source", source, "columns", len(table.Columns), "rows", len(table.Rows))
	return table, nil
}

// normalizeHeader trims, lower-cases and BOM-strips header names. Blank
// names are kept as "" so positions line up; they are skipped when reading.
func normalizeHeader(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		n := strings.ToLower(strings.TrimSpace(h))
		if n != "" {
			if seen[n] {
				return nil, fmt.Errorf("%w: %q", errDuplicateHeader, n)
			}
			seen[n] = true
		}
		names[i] = n
	}
	return names, nil
}

// Normalize maps every raw row onto the contract's normalized columns and
// coerces its values. The result has one record per raw row, in order.
// Normalized columns whose raw source is absent are left out of every
// record, so the Validator can tell a missing column from a null value.
func (l *Loader) Normalize(table *domain.RawTable) *domain.Dataset {
	type source struct {
		normalized string
		raw        string
		typ        domain.ColumnType
	}

	var present []source
	ds := &domain.Dataset{
		Source:        table.Source,
		SourceColumns: append([]string(nil), table.Columns...),
		Columns:       []string{},
		Unmapped:      []string{},
		Records:       make([]domain.NormalizedRecord, 0, len(table.Rows)),
	}
	for _, col := range l.contract.NormalizedColumns() {
		raw, ok := l.contract.RawColumnFor(col)
		if !ok || !table.HasColumn(raw) {
			continue
		}
		typ, _ := l.contract.TypeOf(col)
		present = append(present, source{normalized: col, raw: raw, typ: typ})
		ds.Columns = append(ds.Columns, col)
	}

	for _, raw := range table.Columns {
		if _, ok := l.contract.MapColumnName(raw); ok {
			continue
		}
		ds.Unmapped = append(ds.Unmapped, raw)
		l.logger.Info("column excluded from normalized view",
			"source", table.Source,
			"column", raw,
			"recognized", l.contract.IsKnownRaw(raw),
		)
	}

	failed := 0
	for _, row := range table.Rows {
		cells := make(map[string]domain.Cell, len(present))
		for _, s := range present {
			cell, ok := Coerce(l.contract, s.typ, row.Fields[s.raw])
			if !ok {
				failed++
			}
			cells[s.normalized] = cell
		}
		ds.Records = append(ds.Records, domain.NormalizedRecord{
			Index: row.Index,
			Line:  row.Line,
			Cells: cells,
		})
	}

	l.logger.Debug("source normalized",
		"source", table.Source,
		"rows", len(ds.Records),
		"columns", len(ds.Columns),
		"coercion_failures", failed,
	)
	return ds
}

// Summarize computes the dataset summary.
func (l *Loader) Summarize(ds *domain.Dataset) domain.Summary {
	return domain.Summarize(ds.Records)
}

// Read loads and normalizes r in one call.
func (l *Loader) Read(source string, r io.Reader) (*domain.Dataset, error) {
	table, err := l.Load(source, r)
	if err != nil {
		return nil, err
	}
	return l.Normalize(table), nil
}
