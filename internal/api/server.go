// Package api provides the HTTP API for querying a loaded world.
// GET endpoints are public (read-only queries over the current store).
// POST /api/v1/reload requires a bearer token (it hits the game servers).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"polismap/internal/feed"
	"polismap/internal/fetch"
	"polismap/internal/selection"
	"polismap/internal/storage"
	"polismap/internal/world"
)

// Server serves world queries over HTTP.
type Server struct {
	Loader   *fetch.Loader
	Client   *fetch.Client
	DataDir  string // snapshot directory; empty disables snapshots
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Handler builds the full route table. Split out from Start so tests can
// drive the API through httptest.
func (s *Server) Handler() http.Handler {
	// Reloads hit the live game servers; keep them rare per client.
	reloadLimiter := NewRateLimiter(12, time.Hour)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/towns", s.handleTowns)
	mux.HandleFunc("/api/v1/ghost-towns", s.handleGhostTowns)
	mux.HandleFunc("/api/v1/distinct", s.handleDistinct)
	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/api/v1/snapshots", s.handleSnapshots)

	mux.HandleFunc("/api/v1/reload", s.adminOnly(RateLimitMiddleware(reloadLimiter, s.handleReload)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
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
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no POLISMAP_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// currentStore returns the loaded store, or writes 503 and returns nil.
func (s *Server) currentStore(w http.ResponseWriter) *world.Store {
	store := s.Loader.Current()
	if store == nil {
		http.Error(w, "no world loaded", http.StatusServiceUnavailable)
	}
	return store
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := s.Loader.Current()
	if store == nil {
		writeJSON(w, map[string]any{"loaded": false})
		return
	}

	towns, players, alliances, islands := store.Counts()
	writeJSON(w, map[string]any{
		"loaded":         true,
		"server":         store.Server(),
		"built_at":       store.BuiltAt().Format(time.RFC3339),
		"towns":          towns,
		"players":        players,
		"alliances":      alliances,
		"islands":        islands,
		"query_computes": store.Computes(),
	})
}

func (s *Server) handleTowns(w http.ResponseWriter, r *http.Request) {
	store := s.currentStore(w)
	if store == nil {
		return
	}
	writeJSON(w, store.AllTowns())
}

func (s *Server) handleGhostTowns(w http.ResponseWriter, r *http.Request) {
	store := s.currentStore(w)
	if store == nil {
		return
	}
	writeJSON(w, store.GhostTowns())
}

// handleDistinct serves GET /api/v1/distinct?field=PlayerName with optional
// repeated constraint= parameters in wire line form, e.g.
// constraint=AlliancePoints%20GreaterOrEqual%201000.
func (s *Server) handleDistinct(w http.ResponseWriter, r *http.Request) {
	store := s.currentStore(w)
	if store == nil {
		return
	}

	field, ok := selection.FieldByName(r.URL.Query().Get("field"))
	if !ok {
		http.Error(w, "unknown field", http.StatusBadRequest)
		return
	}

	var cons []selection.Constraint
	for _, line := range r.URL.Query()["constraint"] {
		c, err := selection.DecodeConstraint(line)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad constraint %q: %v", line, err), http.StatusBadRequest)
			return
		}
		cons = append(cons, c)
	}

	values, err := store.DistinctValues(field, cons, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, map[string]any{
		"field":  field.String(),
		"count":  len(values),
		"values": values,
	})
}

// querySelection is one selection in a query request. Constraints use the
// wire line form: "<Field> <Comparator> <value>".
type querySelection struct {
	Name        string   `json:"name"`
	Join        string   `json:"join"`
	Constraints []string `json:"constraints"`
}

// queryRequest evaluates a set of selections against the current world.
// Either YAML (the selection export document) or Selections is given.
type queryRequest struct {
	YAML       string           `json:"yaml,omitempty"`
	Selections []querySelection `json:"selections,omitempty"`
}

type queryResult struct {
	Name  string           `json:"name"`
	Count int              `json:"count"`
	Towns []world.TownInfo `json:"towns"`
}

// handleQuery serves POST /api/v1/query. Every selection in the request is
// evaluated; selections may reference each other by name.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	store := s.currentStore(w)
	if store == nil {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var all []*selection.Selection
	switch {
	case req.YAML != "":
		imported, err := selection.Import(req.YAML)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad yaml: %v", err), http.StatusBadRequest)
			return
		}
		for _, entry := range imported {
			if entry.Err != nil {
				http.Error(w, fmt.Sprintf("bad selection: %v", entry.Err), http.StatusBadRequest)
				return
			}
			all = append(all, entry.Selection)
		}
	case len(req.Selections) > 0:
		for _, qs := range req.Selections {
			join, ok := selection.JoinModeByIdent(qs.Join)
			if !ok {
				http.Error(w, fmt.Sprintf("bad join mode %q", qs.Join), http.StatusBadRequest)
				return
			}
			sel := &selection.Selection{Name: qs.Name, Join: join}
			for _, line := range qs.Constraints {
				c, err := selection.DecodeConstraint(line)
				if err != nil {
					http.Error(w, fmt.Sprintf("bad constraint %q: %v", line, err), http.StatusBadRequest)
					return
				}
				sel.Constraints = append(sel.Constraints, c)
			}
			all = append(all, sel)
		}
	default:
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}

	results := make([]queryResult, 0, len(all))
	for _, sel := range all {
		towns, err := store.MatchingTowns(sel, all)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if towns == nil {
			towns = []world.TownInfo{}
		}
		results = append(results, queryResult{Name: sel.Name, Count: len(towns), Towns: towns})
	}
	writeJSON(w, results)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.DataDir == "" {
		writeJSON(w, []storage.Snapshot{})
		return
	}
	snaps, err := storage.List(s.DataDir)
	if err != nil {
		slog.Error("snapshot listing failed", "error", err)
		http.Error(w, "snapshot listing failed", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []storage.Snapshot{}
	}
	writeJSON(w, snaps)
}

// reloadRequest names either a world to fetch or a snapshot file to restore.
type reloadRequest struct {
	Server   string `json:"server,omitempty"`
	Path     string `json:"path,omitempty"`
	Snapshot bool   `json:"snapshot,omitempty"` // save the fetched feeds to DataDir
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req reloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		raw feed.Raw
		err error
	)
	switch {
	case req.Path != "":
		raw, err = storage.Load(req.Path)
		if err != nil {
			http.Error(w, fmt.Sprintf("load snapshot: %v", err), http.StatusBadRequest)
			return
		}
	case req.Server != "":
		raw, err = s.Client.FetchWorld(r.Context(), req.Server)
		if err != nil {
			slog.Error("world fetch failed", "server", req.Server, "error", err)
			http.Error(w, fmt.Sprintf("fetch: %v", err), http.StatusBadGateway)
			return
		}
	default:
		http.Error(w, "need server or path", http.StatusBadRequest)
		return
	}

	store, err := s.Loader.LoadRaw(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("parse: %v", err), http.StatusUnprocessableEntity)
		return
	}

	var snapshotPath string
	if req.Snapshot && req.Path == "" {
		if s.DataDir == "" {
			http.Error(w, "snapshots disabled (no data dir)", http.StatusBadRequest)
			return
		}
		if snapshotPath, err = storage.Save(s.DataDir, raw); err != nil {
			slog.Error("snapshot save failed", "server", raw.Server, "error", err)
			http.Error(w, "snapshot save failed", http.StatusInternalServerError)
			return
		}
	}

	towns, players, alliances, islands := store.Counts()
	writeJSON(w, map[string]any{
		"server":    store.Server(),
		"towns":     towns,
		"players":   players,
		"alliances": alliances,
		"islands":   islands,
		"snapshot":  snapshotPath,
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
