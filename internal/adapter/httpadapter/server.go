package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/loader"
	"github.com/couchcryptid/water-quality-etl/internal/pipeline"
)

// Runner executes one validation run over an uploaded source.
type Runner interface {
	Run(ctx context.Context, source string, r io.Reader) (*pipeline.Result, error)
}

// Server exposes health, readiness, metrics and validation HTTP endpoints.
type Server struct {
	httpServer *http.Server
	runner     Runner
	maxUpload  int64
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /v1/validate routes. Upload bodies above maxUpload bytes are rejected.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runner Runner, maxUpload int64, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner:    runner,
		maxUpload: maxUpload,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/validate", s.handleValidate)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type validateResponse struct {
	RunID   string                    `json:"run_id"`
	Source  string                    `json:"source"`
	Summary domain.Summary            `json:"summary"`
	Report  domain.ValidationReport   `json:"report"`
	Records []domain.NormalizedRecord `json:"records,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// handleValidate runs the pipeline over a CSV request body. The source name
// comes from ?source= and defaults to "upload.csv"; ?records=true adds the
// normalized records to the response.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "upload.csv"
	}
	body := http.MaxBytesReader(w, r.Body, s.maxUpload)

	res, err := s.runner.Run(r.Context(), source, body)

	var maxErr *http.MaxBytesError
	var srcErr *loader.SourceReadError
	var pubErr *pipeline.PublishError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds limit")
		return
	case errors.As(err, &srcErr):
		writeError(w, http.StatusBadRequest, srcErr.Error())
		return
	case errors.As(err, &pubErr) && res != nil:
		s.logger.Error("validation result not fully published", "run_id", res.RunID, "error", err)
		writeJSON(w, http.StatusBadGateway, s.response(r, res, err))
		return
	case err != nil:
		s.logger.Error("validation run failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}

	writeJSON(w, http.StatusOK, s.response(r, res, nil))
}

func (s *Server) response(r *http.Request, res *pipeline.Result, err error) validateResponse {
	resp := validateResponse{
		RunID:   res.RunID,
		Source:  res.Source,
		Summary: res.Summary,
		Report:  res.Report,
	}
	if r.URL.Query().Get("records") == "true" {
		resp.Records = res.Dataset.Records
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
