// Package api serves stored house-hunting runs over HTTP.
// GET endpoints are public and read-only.
// POST /api/v1/runs launches a run and requires the admin bearer token.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/engine"
	"github.com/talgya/househunt/internal/persistence"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// Server serves the run database over HTTP.
type Server struct {
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// RunTimeout bounds a run launched through the API. Zero means no bound
	// beyond the run's own tick cutoff.
	RunTimeout time.Duration

	// LaunchLimiter throttles POST /api/v1/runs per client. Nil disables it.
	LaunchLimiter *RateLimiter
}

// Handler builds the routed handler, CORS included.
func (s *Server) Handler() http.Handler {
	launch := s.adminOnly(s.handleLaunch)
	if s.LaunchLimiter != nil {
		launch = RateLimitMiddleware(s.LaunchLimiter, launch)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("POST /api/v1/runs", launch)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/trace", s.handleTrace)
	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins; localhost dev
// servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no HOUSEHUNT_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	n, err := s.DB.CountRuns()
	if err != nil {
		slog.Error("count runs failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	last, err := s.DB.GetMeta("last_run")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("read last run failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"name":         "househunt",
		"runs":         n,
		"last_run":     last,
		"admin_launch": s.AdminKey != "",
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.GetRun(r.PathValue("id"))
	if !s.checkLookup(w, err) {
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	rows, err := s.DB.RunTrace(r.PathValue("id"))
	if !s.checkLookup(w, err) {
		return
	}
	if rows == nil {
		rows = []engine.TraceRow{}
	}
	writeJSON(w, rows)
}

// checkLookup writes the error response for a failed run lookup and
// reports whether the handler should continue.
func (s *Server) checkLookup(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, persistence.ErrNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
	default:
		slog.Error("run lookup failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
	}
	return false
}

type launchResponse struct {
	ID      string         `json:"id"`
	Summary engine.Summary `json:"summary"`
}

// handleLaunch runs the experiment in the YAML request body to completion
// and stores it. An empty body runs the default experiment.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	exp, err := config.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seed := exp.Run.Seed
	if v := r.URL.Query().Get("seed"); v != "" {
		seed, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "seed must be an integer", http.StatusBadRequest)
			return
		}
	}

	sim, err := engine.NewSimulation(exp, seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}
	sum, err := sim.Run(ctx, engine.RunOptions{})
	if err != nil {
		slog.Warn("launched run failed", "seed", sim.Seed, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id, err := s.DB.SaveRun(exp, sum, sim.Trace())
	if err != nil {
		slog.Error("save launched run failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Location", "/api/v1/runs/"+id)
	writeJSONStatus(w, http.StatusCreated, launchResponse{ID: id, Summary: sum})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
