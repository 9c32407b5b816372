package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

const cacheControl = "s-maxage=300, stale-while-revalidate=60"

type eventStore interface {
	Health(ctx context.Context) error
	AllEvents(ctx context.Context) ([]models.Event, error)
	ListSources(ctx context.Context) ([]models.SourceStatus, error)
}

type runner interface {
	Run(ctx context.Context, batch string) models.RunReport
}

type server struct {
	log        *slog.Logger
	store      eventStore
	runner     runner
	secret     string
	runTimeout time.Duration

	runMu sync.Mutex
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEvents)
	r.Get("/sources", s.handleSources)
	r.Get("/scrape", s.handleScrape)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := s.store.AllEvents(ctx)
	if err != nil {
		s.log.Error("list events", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load events"})
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, http.StatusOK, events)
}

func (s *server) handleSources(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sources, err := s.store.ListSources(ctx)
	if err != nil {
		s.log.Error("list sources", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load sources"})
		return
	}

	w.Header().Set("Cache-Control", cacheControl)
	writeJSON(w, http.StatusOK, sources)
}

// handleScrape runs the selected batch. Source failures are part of the
// 200 response; only auth and configuration problems are errors.
func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "CRON_SECRET is not configured"})
		return
	}
	if !s.authorized(r.Header.Get("Authorization")) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorised"})
		return
	}

	// The run outlives a dropped client connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.runTimeout)
	defer cancel()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	batch := strings.TrimSpace(r.URL.Query().Get("batch"))
	report := s.runner.Run(ctx, batch)
	writeJSON(w, http.StatusOK, report)
}

func (s *server) authorized(header string) bool {
	want := "Bearer " + s.secret
	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
