package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/couchcryptid/water-quality-etl/internal/validate"
)

// Sink receives the outcome of a completed run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, res *Result) error
}

// Result is everything one run produced. The caller owns it.
type Result struct {
	RunID     string
	Source    string
	StartedAt time.Time
	Duration  time.Duration
	Summary   domain.Summary
	Dataset   *domain.Dataset
	Report    domain.ValidationReport
}

// PublishError reports a sink that still failed after every retry. The run
// itself completed; Run returns the Result alongside this error.
type PublishError struct {
	Sink     string
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed after %d attempts: %v", e.Sink, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Pipeline runs load, normalize, validate and publish for one source at a
// time. Runs share no mutable state beyond metrics, so concurrent calls are
// safe.
type Pipeline struct {
	loader      *loader.Loader
	validator   *validate.Validator
	sinks       []Sink
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	maxAttempts int

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Pipeline. maxAttempts bounds publish tries per sink.
func New(l *loader.Loader, v *validate.Validator, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, maxAttempts int) *Pipeline {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pipeline{
		loader:         l,
		validator:      v,
		sinks:          sinks,
		logger:         logger,
		metrics:        metrics,
		maxAttempts:    maxAttempts,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// CheckReadiness returns nil if the pipeline has completed at least one run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any runs yet")
	}
	return nil
}

// MarkReady flags the pipeline ready without a run, for services that
// accept work before their first source arrives.
func (p *Pipeline) MarkReady() {
	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)
}

// RunFile opens path and runs it under its base name.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, &loader.SourceReadError{Source: path, Err: err}
	}
	defer f.Close()
	return p.Run(ctx, filepath.Base(path), f)
}

// Run processes one source. Fatal errors (SourceReadError,
// ValidationEngineError, cancellation) return a nil Result. Validation
// findings never fail a run; they are in Result.Report. When a sink fails
// after retries, the Result is returned together with a *PublishError.
func (p *Pipeline) Run(ctx context.Context, source string, r io.Reader) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: domain.Now(),
	}
	logger := p.logger.With("run_id", res.RunID, "source", source)
	logger.Info("run started")

	stage := time.Now()
	table, err := p.loader.Load(source, r)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("load failed", "error", err)
		return nil, err
	}
	p.observeStage("load", stage)
	p.metrics.RowsLoaded.Add(float64(len(table.Rows)))

	stage = time.Now()
	res.Dataset = p.loader.Normalize(table)
	res.Summary = p.loader.Summarize(res.Dataset)
	p.observeStage("normalize", stage)

	stage = time.Now()
	res.Report, err = p.validator.Validate(res.Dataset)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("validation failed", "error", err)
		return nil, err
	}
	p.observeStage("validate", stage)

	for _, issue := range res.Report.Issues() {
		p.metrics.IssuesTotal.WithLabelValues(string(issue.Severity), string(issue.Category)).Inc()
	}
	res.Duration = time.Since(start)

	outcome := "passed"
	if !res.Report.Passed {
		outcome = "failed"
	}
	logger.Info("run validated",
		"rows", res.Report.Summary.RowCount,
		"passed", res.Report.Passed,
		"errors", len(res.Report.Errors),
		"warnings", len(res.Report.Warnings),
	)

	stage = time.Now()
	pubErr := p.publish(ctx, logger, res)
	p.observeStage("publish", stage)

	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.MarkReady()

	if pubErr != nil {
		return res, pubErr
	}
	return res, nil
}

// publish hands res to every sink, retrying each with exponential backoff.
// Every sink is attempted even when an earlier one fails; the first failure
// is returned.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, res *Result) error {
	var first error
	for _, sink := range p.sinks {
		if err := p.publishWithRetry(ctx, logger, sink, res); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *Pipeline) publishWithRetry(ctx context.Context, logger *slog.Logger, sink Sink, res *Result) error {
	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := p.initialBackoff
	var err error
	attempt := 0
	for attempt < p.maxAttempts {
		attempt++
		if err = sink.Publish(ctx, res); err == nil {
			logger.Debug("published", "sink", sink.Name(), "attempt", attempt)
			return nil
		}
		p.metrics.PublishErrors.WithLabelValues(sink.Name()).Inc()
		logger.Error("publish failed", "sink", sink.Name(), "attempt", attempt, "error", err)

		if attempt == p.maxAttempts || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	return &PublishError{Sink: sink.Name(), Attempts: attempt, Err: err}
}

func (p *Pipeline) observeStage(name string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
