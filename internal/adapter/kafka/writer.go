package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes normalized records and validation reports to Kafka.
// It implements pipeline.Sink.
type Writer struct {
	records   messageWriter
	reports   messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates Kafka producers for the configured records and report topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.KafkaBrokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchFlushInterval,
		}
	}
	return &Writer{
		records:   newWriter(cfg.KafkaRecordsTopic),
		reports:   newWriter(cfg.KafkaReportTopic),
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

func (w *Writer) Name() string { return "kafka" }

// Publish writes every normalized record, in chunks of the configured batch
// size, and then the report. Records are keyed by station so one station's
// measurements stay ordered within a partition. A retried Publish may
// deliver records more than once; consumers deduplicate on run_id and row.
func (w *Writer) Publish(ctx context.Context, res *pipeline.Result) error {
	records := res.Dataset.Records
	batch := make([]kafkago.Message, 0, min(w.batchSize, len(records)))
	for i := range records {
		msg, err := serializeRecord(res, records[i])
		if err != nil {
			return err
		}
		batch = append(batch, msg)
		if len(batch) == w.batchSize {
			if err := w.records.WriteMessages(ctx, batch...); err != nil {
				return fmt.Errorf("write records: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := w.records.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("write records: %w", err)
		}
	}

	msg, err := serializeReport(res)
	if err != nil {
		return err
	}
	if err := w.reports.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	w.logger.Debug("kafka publish complete", "run_id", res.RunID, "records", len(records))
	return nil
}

func (w *Writer) Close() error {
	return errors.Join(w.records.Close(), w.reports.Close())
}

// reportEnvelope is the report message body.
type reportEnvelope struct {
	RunID     string                  `json:"run_id"`
	Source    string                  `json:"source"`
	StartedAt time.Time               `json:"started_at"`
	Summary   domain.Summary          `json:"summary"`
	Report    domain.ValidationReport `json:"report"`
}

// serializeRecord marshals one normalized record into a Kafka message.
func serializeRecord(res *pipeline.Result, rec domain.NormalizedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %d: %w", rec.Index, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.StationID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(res.RunID)},
			{Key: "source", Value: []byte(res.Source)},
			{Key: "row", Value: []byte(strconv.Itoa(rec.Index))},
		},
	}, nil
}

// serializeReport marshals the run's report into a Kafka message keyed by run.
func serializeReport(res *pipeline.Result) (kafkago.Message, error) {
	data, err := json.Marshal(reportEnvelope{
		RunID:     res.RunID,
		Source:    res.Source,
		StartedAt: res.StartedAt,
		Summary:   res.Summary,
		Report:    res.Report,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(res.RunID)},
			{Key: "passed", Value: []byte(strconv.FormatBool(res.Report.Passed))},
			{Key: "started_at", Value: []byte(res.StartedAt.Format(time.RFC3339))},
		},
	}, nil
}
