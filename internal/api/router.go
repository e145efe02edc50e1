package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fablesim/fablesim/internal/agent"
	mw "github.com/fablesim/fablesim/internal/middleware"
	"github.com/fablesim/fablesim/internal/sim"
	"github.com/fablesim/fablesim/internal/state"
	"github.com/fablesim/fablesim/internal/validation"
	"github.com/fablesim/fablesim/internal/world"
)

// Server exposes a running simulation over HTTP: the live world, the
// event stream, snapshots and player input.
type Server struct {
	router      chi.Router
	sim         *sim.Simulator
	store       *state.Store
	hub         *Hub
	rateLimiter *mw.RateLimiter
	authSecret  string
}

// NewServer creates a new API server. The store may be nil when
// snapshots are disabled.
func NewServer(simulator *sim.Simulator, store *state.Store, authSecret string) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		sim:         simulator,
		store:       store,
		hub:         NewHub(simulator.Bus()),
		rateLimiter: mw.NewRateLimiter(100, 20),
		authSecret:  authSecret,
	}

	s.setupRoutes()
	return s
}

// Hub returns the websocket hub so the caller can run it.
func (s *Server) Hub() *Hub { return s.hub }

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(mw.SecurityHeaders)
	s.router.Use(mw.MaxBodySize(1024 * 1024)) // 1MB max

	// Read-only endpoints (no auth required)
	s.router.Get("/api/world", s.getWorld)
	s.router.Get("/api/turn", s.getTurn)
	s.router.Get("/api/events/recent", s.getRecentEvents)
	s.router.Get("/ws", s.hub.HandleWS)

	// Mutating endpoints (auth required when a secret is configured)
	s.router.Group(func(r chi.Router) {
		r.Use(mw.Auth(s.authSecret))
		r.Post("/api/snapshots", s.createSnapshot)
		r.Get("/api/snapshots", s.listSnapshots)
		r.Get("/api/snapshots/latest", s.getLatestSnapshot)
		r.Get("/api/snapshots/{id}", s.getSnapshot)
		r.Post("/api/snapshots/{id}/restore", s.restoreSnapshot)
		r.Post("/api/players/{character}/input", s.playerInput)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (sanitized)
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// getWorld returns the live world and turn counter
func (s *Server) getWorld(w http.ResponseWriter, r *http.Request) {
	var snap *state.Snapshot
	var captureErr error
	s.sim.View(func(wld *world.World, turn int) {
		snap, captureErr = state.Capture(wld, turn)
	})
	if captureErr != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read world")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"world": snap.World,
			"turn":  snap.Turn,
		},
	})
}

// getTurn returns the current turn counter
func (s *Server) getTurn(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int{"turn": s.sim.Turn()},
	})
}

// getRecentEvents returns the tail of the event stream
func (s *Server) getRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.sim.Bus().Recent(limit),
	})
}

// createSnapshot captures the current world and stores it
func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshots are disabled")
		return
	}

	var snap *state.Snapshot
	var captureErr error
	s.sim.View(func(wld *world.World, turn int) {
		snap, captureErr = state.Capture(wld, turn)
	})
	if captureErr != nil {
		writeError(w, http.StatusInternalServerError, "Failed to capture snapshot")
		return
	}
	snap.Memory = s.sim.Memories()
	snap.Seed = s.sim.Seed()
	if err := s.store.SaveSnapshot(snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save snapshot")
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: state.SnapshotMeta{
			ID:        snap.ID,
			WorldName: snap.WorldName,
			Turn:      snap.Turn,
			CreatedAt: snap.CreatedAt,
		},
	})
}

// listSnapshots lists stored snapshots, newest first
func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshots are disabled")
		return
	}

	metas, err := s.store.ListSnapshots(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    metas,
	})
}

// getLatestSnapshot returns the newest stored snapshot
func (s *Server) getLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshots are disabled")
		return
	}

	snap, err := s.store.LatestSnapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "No snapshots yet")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    snap,
	})
}

// getSnapshot returns one stored snapshot by ID
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshots are disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if err := validation.ValidateSnapshotID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot ID")
		return
	}

	snap, err := s.store.GetSnapshot(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "Snapshot not found")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    snap,
	})
}

// restoreSnapshot swaps the live world for a stored snapshot
func (s *Server) restoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Snapshots are disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if err := validation.ValidateSnapshotID(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot ID")
		return
	}

	snap, err := s.store.GetSnapshot(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load snapshot")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "Snapshot not found")
		return
	}

	restored, err := snap.Restore()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to restore snapshot")
		return
	}
	s.sim.SetState(restored, snap.Turn)
	if snap.Memory != nil {
		s.sim.SetMemories(snap.Memory)
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int{"turn": snap.Turn},
	})
}

// playerInput delivers a player's reply to their character's pending
// prompt
func (s *Server) playerInput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "character")
	if err := validation.ValidateCharacterName(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid character name")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidatePlayerInput(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	player, ok := s.sim.Agent(name).(*agent.PlayerAgent)
	if !ok {
		writeError(w, http.StatusNotFound, "Character is not player-controlled")
		return
	}
	if !player.Submit(req.Text) {
		writeError(w, http.StatusConflict, "No prompt is waiting for input")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    "Input accepted",
	})
}
