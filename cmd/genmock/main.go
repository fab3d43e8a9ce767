// Command genmock writes a deterministic ECCC water quality CSV seeded with
// one instance of every defect the validator detects, plus the golden report
// the validator produces for it. It uses the real loader and validator so the
// golden file always matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out testdata/eccc_sample.csv \
//	  -report-out testdata/eccc_sample.report.json \
//	  -rows 48 -seed 7
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
	"github.com/couchcryptid/water-quality-etl/internal/validate"
)

// referenceNow is the fixed "now" used for golden reports, so the seeded
// future timestamp stays in the future.
var referenceNow = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "testdata/eccc_sample.csv", "output path for the CSV fixture")
	reportOut := flag.String("report-out", "testdata/eccc_sample.report.json", "output path for the golden validation report")
	rows := flag.Int("rows", 48, "number of clean rows before defects are appended")
	seed := flag.Uint64("seed", 7, "random seed for measurement values")
	flag.Parse()

	if *rows < 1 {
		return fmt.Errorf("-rows must be positive")
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, generate(*rows, *seed)); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}

	report, err := goldenReport(filepath.Base(*out), buf.Bytes())
	if err != nil {
		return err
	}

	if err := writeFile(*out, buf.Bytes()); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s (%d rows)", *out, report.Summary.RowCount)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := writeFile(*reportOut, append(data, '\n')); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	log.Printf("wrote golden report: %s (%d errors, %d warnings)", *reportOut, len(report.Errors), len(report.Warnings))
	return nil
}

// goldenReport validates data under the fixed reference clock.
func goldenReport(source string, data []byte) (domain.ValidationReport, error) {
	domain.SetClock(clockwork.NewFakeClockAt(referenceNow))
	defer domain.SetClock(nil)

	contract := schema.Default()
	l := loader.New(contract, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ds, err := l.Read(source, bytes.NewReader(data))
	if err != nil {
		return domain.ValidationReport{}, fmt.Errorf("load generated fixture: %w", err)
	}
	return validate.New(contract, validate.DefaultOptions()).Validate(ds)
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
