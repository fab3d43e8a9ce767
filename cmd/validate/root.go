package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/water-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
	"github.com/couchcryptid/water-quality-etl/internal/validate"
)

var (
	errValidationFailed = errors.New("validation failed")
	errUnprocessed      = errors.New("one or more files could not be processed")
)

type options struct {
	contractPath  string
	outputDir     string
	jsonOutput    bool
	noColor       bool
	noFutureCheck bool
	nullRateWarn  float64
	nullRateError float64
	logLevel      string
}

// fileResult is one file's entry in --json output.
type fileResult struct {
	RunID   string                   `json:"run_id,omitempty"`
	Source  string                   `json:"source"`
	Summary *domain.Summary          `json:"summary,omitempty"`
	Report  *domain.ValidationReport `json:"report,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func newRootCmd(stdout, stderr io.Writer, metrics *observability.Metrics) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "validate [flags] FILE...",
		Short: "Validate ECCC water quality CSV exports",
		Long: `Validate ECCC water quality CSV exports against the schema contract.

Each file is loaded, normalized and checked by the schema, data quality and
business rule passes. Errors fail the file; warnings are reported only.

Examples:
  validate data/eccc_2020.csv
  validate --output-dir out data/*.csv
  validate --json --null-rate-warn 0.2 data/eccc_2020.csv`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args, stdout, stderr, metrics)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.contractPath, "contract", sharedcfg.EnvOrDefault("SCHEMA_CONTRACT_PATH", ""), "YAML schema contract (default built-in ECCC contract)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "write <name>.normalized.csv and <name>.report.json here")
	f.BoolVar(&opts.jsonOutput, "json", false, "print reports as JSON")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored PASS/FAIL output")
	f.BoolVar(&opts.noFutureCheck, "no-future-check", false, "do not flag timestamps later than now")
	f.Float64Var(&opts.nullRateWarn, "null-rate-warn", 0, "warn when a column's null rate exceeds this fraction (0 disables)")
	f.Float64Var(&opts.nullRateError, "null-rate-error", 0, "fail when a column's null rate exceeds this fraction (0 disables)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(newSchemaCmd(stdout))
	return cmd
}

func runValidate(cmd *cobra.Command, opts options, paths []string, stdout, stderr io.Writer, metrics *observability.Metrics) error {
	if err := checkRate("null-rate-warn", opts.nullRateWarn); err != nil {
		return err
	}
	if err := checkRate("null-rate-error", opts.nullRateError); err != nil {
		return err
	}
	if opts.nullRateWarn > 0 && opts.nullRateError > 0 && opts.nullRateWarn > opts.nullRateError {
		return errors.New("--null-rate-warn must not exceed --null-rate-error")
	}

	contract, err := schema.FromPath(opts.contractPath)
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, opts.logLevel, "text")
	var sinks []pipeline.Sink
	if opts.outputDir != "" {
		sinks = append(sinks, csvfile.New(opts.outputDir, logger))
	}
	p := pipeline.New(
		loader.New(contract, logger),
		validate.New(contract, validate.Options{
			CheckFuture:   !opts.noFutureCheck,
			NullRateWarn:  opts.nullRateWarn,
			NullRateError: opts.nullRateError,
		}),
		sinks,
		logger,
		metrics,
		1,
	)

	pr := newPrinter(stdout, !opts.noColor)
	var results []fileResult
	failed, unprocessed := false, false
	for _, path := range paths {
		res, err := p.RunFile(cmd.Context(), path)
		var pubErr *pipeline.PublishError
		if err != nil && !errors.As(err, &pubErr) {
			unprocessed = true
			fmt.Fprintf(stderr, "FATAL: %s: %v\n", path, err)
			results = append(results, fileResult{Source: path, Error: err.Error()})
			continue
		}
		if pubErr != nil {
			unprocessed = true
			fmt.Fprintf(stderr, "FATAL: %s: %v\n", path, pubErr)
		}
		if !res.Report.Passed {
			failed = true
		}

		entry := fileResult{RunID: res.RunID, Source: res.Source, Summary: &res.Summary, Report: &res.Report}
		if pubErr != nil {
			entry.Error = pubErr.Error()
		}
		results = append(results, entry)
		if !opts.jsonOutput {
			pr.printResult(res)
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
	} else {
		pr.printVerdict(!failed && !unprocessed)
	}

	switch {
	case unprocessed:
		return errUnprocessed
	case failed:
		return errValidationFailed
	}
	return nil
}

func checkRate(flag string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("--%s must be between 0 and 1", flag)
	}
	return nil
}

func formatRange(r *domain.DateRange) string {
	if r == nil {
		return "none"
	}
	return r.Min.UTC().Format(time.RFC3339) + " .. " + r.Max.UTC().Format(time.RFC3339)
}
