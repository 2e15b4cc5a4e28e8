// Package httpapi serves the operational HTTP surface: health, metrics,
// document submission and status, and answers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// Default server values.
const (
	DefaultAddr       = ":8080"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
	maxBodyBytes      = 1 << 20
)

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("httpapi: ingestion service is required")

// Server routes HTTP requests to the driving ports.
type Server struct {
	ingestion driving.IngestionService
	answers   driving.AnswerService
	gatherer  prometheus.Gatherer
	router    *mux.Router
}

// NewServer creates a server. answers may be nil, in which case
// /v1/answers responds 503. gatherer may be nil to use the default registry.
func NewServer(ingestion driving.IngestionService, answers driving.AnswerService, gatherer prometheus.Gatherer) (*Server, error) {
	if ingestion == nil {
		return nil, ErrMissingIngestionService
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		ingestion: ingestion,
		answers:   answers,
		gatherer:  gatherer,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/documents", s.handleSubmit).Methods(http.MethodPost)
	v1.HandleFunc("/documents/{id}/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/answers", s.handleAnswer).Methods(http.MethodPost)
}

// Mount serves h under prefix alongside the built-in routes.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.router.PathPrefix(prefix).Handler(h)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("HTTP server listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// SubmitRequest is the body of POST /v1/documents.
type SubmitRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name,omitempty"`
	StoragePath string `json:"storage_path"`
}

// SubmitResponse is returned by POST /v1/documents.
type SubmitResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// StatusResponse is returned by GET /v1/documents/{id}/status.
type StatusResponse struct {
	DocumentID   string    `json:"document_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TotalPages   int       `json:"total_pages"`
	TotalChunks  int       `json:"total_chunks"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AnswerRequest is the body of POST /v1/answers.
type AnswerRequest struct {
	Query       string   `json:"query"`
	UserID      string   `json:"user_id"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	MaxResults  int      `json:"max_results,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ack, err := s.ingestion.Submit(r.Context(), domain.SubmitRequest{
		UserID:      req.UserID,
		Name:        req.Name,
		StoragePath: req.StoragePath,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{DocumentID: ack.DocumentID, Status: string(ack.State.Status)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ingestion.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		Status:       string(doc.State.Status),
		Stage:        string(doc.State.Stage),
		ErrorMessage: doc.State.ErrorMessage,
		TotalPages:   doc.State.TotalPages,
		TotalChunks:  doc.State.TotalChunks,
		UpdatedAt:    doc.UpdatedAt,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "answers are not available"})
		return
	}

	var req AnswerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID == "" {
		writeError(w, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput))
		return
	}

	answer := s.answers.Answer(r.Context(), domain.AnswerRequest{
		Query:       req.Query,
		UserID:      req.UserID,
		DocumentIDs: req.DocumentIDs,
		MaxResults:  req.MaxResults,
	})
	writeJSON(w, http.StatusOK, answer)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQueueClosed), errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Warn("http: %v", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("http: encoding response: %v", err)
	}
}
