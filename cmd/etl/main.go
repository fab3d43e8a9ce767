package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/water-quality-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/water-quality-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/water-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
	"github.com/couchcryptid/water-quality-etl/internal/schema"
	"github.com/couchcryptid/water-quality-etl/internal/validate"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	contract, err := schema.FromPath(cfg.SchemaContractPath)
	if err != nil {
		logger.Error("failed to load schema contract", "path", cfg.SchemaContractPath, "error", err)
		os.Exit(1)
	}

	validator := validate.New(contract, validate.Options{
		CheckFuture:   cfg.FutureTimestampCheck,
		NullRateWarn:  cfg.NullRateWarn,
		NullRateError: cfg.NullRateError,
	})

	var sinks []pipeline.Sink
	if cfg.OutputDir != "" {
		sinks = append(sinks, csvfile.New(cfg.OutputDir, logger))
		logger.Info("file sink enabled", "dir", cfg.OutputDir)
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka sink enabled",
			"brokers", cfg.KafkaBrokers,
			"records_topic", cfg.KafkaRecordsTopic,
			"report_topic", cfg.KafkaReportTopic,
		)
	}

	p := pipeline.New(loader.New(contract, logger), validator, sinks, logger, metrics, cfg.PublishMaxAttempts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, cfg.MaxUploadBytes, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()
	p.MarkReady()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
