// Package csvfile persists validation runs to a local directory.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

// Sink writes <stem>.normalized.csv and <stem>.report.json into Dir, where
// stem is the source name without its extension. Later runs of the same
// source overwrite earlier output.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// New creates a Sink rooted at dir. The directory is created on first publish.
func New(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

func (s *Sink) Name() string { return "csvfile" }

// Publish writes the normalized table and the report.
func (s *Sink) Publish(ctx context.Context, res *pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	stem := Stem(res.Source)
	tablePath := filepath.Join(s.dir, stem+".normalized.csv")
	if err := writeFile(tablePath, func(f *os.File) error { return WriteTable(f, res.Dataset) }); err != nil {
		return fmt.Errorf("write normalized table: %w", err)
	}
	reportPath := filepath.Join(s.dir, stem+".report.json")
	if err := writeFile(reportPath, func(f *os.File) error { return WriteReport(f, res) }); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	s.logger.Info("outputs written", "run_id", res.RunID, "table", tablePath, "report", reportPath)
	return nil
}

// Stem returns the base name of source without its extension.
func Stem(source string) string {
	base := filepath.Base(source)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" && stem != "." {
		return stem
	}
	return "dataset"
}

// WriteTable renders the dataset as CSV: a header of the present normalized
// columns in contract order, then one line per record with nulls empty.
func WriteTable(out io.Writer, ds *domain.Dataset) error {
	w := csv.NewWriter(out)
	if err := w.Write(ds.Columns); err != nil {
		return err
	}
	row := make([]string, len(ds.Columns))
	for _, rec := range ds.Records {
		for i, col := range ds.Columns {
			row[i] = rec.Cells[col].Text()
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

type reportFile struct {
	RunID     string                  `json:"run_id"`
	Source    string                  `json:"source"`
	StartedAt time.Time               `json:"started_at"`
	Summary   domain.Summary          `json:"summary"`
	Report    domain.ValidationReport `json:"report"`
}

// WriteReport renders the run's summary and report as indented JSON.
func WriteReport(out io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reportFile{
		RunID:     res.RunID,
		Source:    res.Source,
		StartedAt: res.StartedAt,
		Summary:   res.Summary,
		Report:    res.Report,
	})
}

// writeFile writes through a temp file in the same directory and renames it
// into place so readers never observe a partial file.
func writeFile(path string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := fill(tmp); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck,gosec // chmod error takes precedence
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
