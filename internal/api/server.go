// Package api provides the HTTP API for observing a live simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/uprising/internal/engine"
	"github.com/talgya/uprising/internal/lattice"
	"github.com/talgya/uprising/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // optional; enables /runs and /snapshot
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/series", s.handleSeries)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/config", s.handleConfig)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/step", s.adminOnly(s.handleStep))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, corsMiddleware(mux)); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	if s.AdminKey == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// limitParam parses ?limit=N with a default and upper bound.
func limitParam(r *http.Request, def, most int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > most {
		return most
	}
	return n
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest := s.Sim.Latest()
	resp := map[string]any{
		"run_id":     s.RunID,
		"step":       s.Sim.StepCount(),
		"terminated": s.Sim.Terminated(),
		"seed":       s.Sim.Seed,
		"quiescent":  latest.Quiescent,
		"active":     latest.Active,
		"jailed":     latest.Jailed,
		"employed":   latest.Employed,
	}
	if s.Eng != nil {
		resp["speed"] = s.Eng.Speed
	}
	writeJSON(w, resp)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	g := s.Sim.Grid()
	type cell struct {
		Position lattice.Point `json:"position"`
		AgentID  uint64        `json:"agent_id"`
		Kind     string        `json:"kind"`
	}
	var cells []cell
	for _, st := range s.Sim.Snapshot() {
		if st.Position == nil {
			continue
		}
		cells = append(cells, cell{Position: *st.Position, AgentID: uint64(st.ID), Kind: st.Kind})
	}
	writeJSON(w, map[string]any{
		"width":    g.Width,
		"height":   g.Height,
		"occupied": cells,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series := s.Sim.Series()
	limit := limitParam(r, len(series), len(series))
	if limit < len(series) {
		series = series[len(series)-limit:]
	}
	writeJSON(w, series)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.Sim.Events()
	limit := limitParam(r, 100, 1000)
	if limit < len(events) {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Config)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store attached", http.StatusNotFound)
		return
	}
	runs, err := s.DB.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		N int `json:"n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.N < 1 {
		http.Error(w, "body must be {\"n\": steps >= 1}", http.StatusBadRequest)
		return
	}
	done, err := s.Sim.Run(req.N)
	if err != nil && !errors.Is(err, engine.ErrTerminated) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"completed":  done,
		"step":       s.Sim.StepCount(),
		"terminated": s.Sim.Terminated(),
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no live engine attached", http.StatusNotFound)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed < 0 {
		http.Error(w, "body must be {\"speed\": multiplier >= 0}", http.StatusBadRequest)
		return
	}
	s.Eng.Speed = req.Speed
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]any{"speed": req.Speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.RunID == "" {
		http.Error(w, "no run store attached", http.StatusNotFound)
		return
	}
	if err := s.DB.SaveRun(s.RunID, s.Sim); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"saved": true, "step": s.Sim.StepCount()})
}
