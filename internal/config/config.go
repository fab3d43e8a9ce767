package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Validation settings.
	SchemaContractPath   string
	MaxUploadBytes       int64
	NullRateWarn         float64
	NullRateError        float64
	FutureTimestampCheck bool

	// Sinks. A sink is enabled by OutputDir or KafkaEnabled.
	OutputDir          string
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaRecordsTopic  string
	KafkaReportTopic   string
	BatchSize          int
	BatchFlushInterval time.Duration
	PublishMaxAttempts int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	maxUpload, err := strconv.ParseInt(sharedcfg.EnvOrDefault("MAX_UPLOAD_BYTES", "33554432"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, errors.New("invalid MAX_UPLOAD_BYTES")
	}

	nullWarn, err := parseRate("NULL_RATE_WARN")
	if err != nil {
		return nil, err
	}
	nullErr, err := parseRate("NULL_RATE_ERROR")
	if err != nil {
		return nil, err
	}

	futureCheck, err := parseBool("FUTURE_TIMESTAMP_CHECK", true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	attempts, err := strconv.Atoi(sharedcfg.EnvOrDefault("PUBLISH_MAX_ATTEMPTS", "3"))
	if err != nil || attempts < 1 {
		return nil, errors.New("invalid PUBLISH_MAX_ATTEMPTS")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SchemaContractPath:   sharedcfg.EnvOrDefault("SCHEMA_CONTRACT_PATH", ""),
		MaxUploadBytes:       maxUpload,
		NullRateWarn:         nullWarn,
		NullRateError:        nullErr,
		FutureTimestampCheck: futureCheck,

		OutputDir:          sharedcfg.EnvOrDefault("OUTPUT_DIR", ""),
		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRecordsTopic:  sharedcfg.EnvOrDefault("KAFKA_RECORDS_TOPIC", "normalized-water-quality"),
		KafkaReportTopic:   sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "water-quality-validation-reports"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		PublishMaxAttempts: attempts,
	}

	if cfg.NullRateWarn > 0 && cfg.NullRateError > 0 && cfg.NullRateWarn > cfg.NullRateError {
		return nil, errors.New("NULL_RATE_WARN must not exceed NULL_RATE_ERROR")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaRecordsTopic == "" {
			return nil, errors.New("KAFKA_RECORDS_TOPIC is required")
		}
		if cfg.KafkaReportTopic == "" {
			return nil, errors.New("KAFKA_REPORT_TOPIC is required")
		}
	}

	return cfg, nil
}

// parseRate reads a null-rate threshold in [0, 1]. Zero disables it.
func parseRate(name string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(name, "0"), 64)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("invalid %s: must be between 0 and 1", name)
	}
	return v, nil
}

func parseBool(name string, def bool) (bool, error) {
	v, err := strconv.ParseBool(sharedcfg.EnvOrDefault(name, strconv.FormatBool(def)))
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}
