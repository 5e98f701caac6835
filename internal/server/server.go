// Package server exposes the filter admin surface over HTTP: configured
// pipelines, a dry-run endpoint, and recent run records.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openedx/openedx-filters/pkg/filter"
	"github.com/openedx/openedx-filters/pkg/filter/config"
)

// ConfigInspector is the view of the configuration source the admin surface
// needs: enumerate filter types and look up their pipelines.
type ConfigInspector interface {
	config.Source
	FilterTypes() []string
}

// RunLister lists recent run records. The runlog store implements it; a nil
// lister disables the /runs endpoint.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]filter.RunRecord, error)
}

// Server is the filter admin HTTP server.
type Server struct {
	Router *chi.Mux
	Port   int

	runner *filter.Runner
	source ConfigInspector
	runs   RunLister
	logger *slog.Logger
}

// New builds the admin server and its routes.
func New(port int, runner *filter.Runner, source ConfigInspector, runs RunLister, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "openedx-filters-admin")
	})

	s := &Server{
		Router: r,
		Port:   port,
		runner: runner,
		source: source,
		runs:   runs,
		logger: logger,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/filters", s.handleListFilters)
	r.Post("/filters/{filterType}/run", s.handleRunFilter)
	if runs != nil {
		r.Get("/runs", s.handleListRuns)
	}

	return s
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting filter admin server", slog.Int("port", s.Port))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filterSummary is the admin view of one configured filter.
type filterSummary struct {
	FilterType   string   `json:"filter_type"`
	Pipeline     []string `json:"pipeline"`
	FailSilently bool     `json:"fail_silently"`
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	types := s.source.FilterTypes()
	summaries := make([]filterSummary, 0, len(types))
	for _, t := range types {
		cfg, err := s.source.Lookup(t)
		if err != nil {
			s.logger.Error("invalid filter configuration",
				slog.String("filter_type", t),
				slog.String("error", err.Error()))
			continue
		}
		summaries = append(summaries, filterSummary{
			FilterType:   t,
			Pipeline:     cfg.Steps,
			FailSilently: cfg.FailSilently,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// runResponse is the dry-run result representation.
type runResponse struct {
	Bag       filter.Bag `json:"bag,omitempty"`
	Value     any        `json:"value,omitempty"`
	StoppedBy string     `json:"stopped_by,omitempty"`
}

// handleRunFilter executes a pipeline against a caller-supplied bag. Intended
// for operators validating a pipeline rollout, not for production traffic.
func (s *Server) handleRunFilter(w http.ResponseWriter, r *http.Request) {
	filterType := chi.URLParam(r, "filterType")

	var bag filter.Bag
	if err := json.NewDecoder(r.Body).Decode(&bag); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid argument bag: %v", err))
		return
	}

	res, err := s.runner.Run(r.Context(), filterType, bag)
	if err != nil {
		if term, ok := filter.AsTermination(err); ok {
			writeJSON(w, http.StatusConflict, map[string]any{
				"terminated":  true,
				"message":     term.Message,
				"redirect_to": term.RedirectTo,
				"status_code": term.StatusCode,
				"attrs":       term.Attrs,
			})
			return
		}
		var resErr *filter.ResolutionError
		if errors.As(err, &resErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Bag:       res.Bag,
		Value:     res.Value,
		StoppedBy: res.StoppedBy,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.runs.Recent(r.Context(), parseLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []filter.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit reads a ?limit= query parameter with a default.
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
