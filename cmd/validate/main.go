// Command validate checks ECCC water quality CSV exports against the schema
// contract and prints a per-pass report.
//
// Usage:
//
//	go run ./cmd/validate data/eccc_2020.csv data/eccc_2021.csv
//	go run ./cmd/validate --output-dir out --json data/eccc_2020.csv
//	go run ./cmd/validate schema
//
// Exit status is 0 when every file passes, 1 when any file has validation
// errors, and 2 when a file could not be processed at all.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/water-quality-etl/internal/observability"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "FATAL: load .env: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr, observability.NewMetrics())
	err := cmd.ExecuteContext(ctx)
	stop()
	switch {
	case err == nil:
	case errors.Is(err, errValidationFailed):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(2)
	}
}
