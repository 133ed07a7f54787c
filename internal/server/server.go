// Package server implements the remote config protocol: archetype, rule,
// and exemption documents served from a config directory, plus telemetry
// ingestion. The CLI exposes it as `archlint serve`; the resolver tests use
// it as their backend.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// namePattern gates every archetype/rule path segment before any file
// lookup happens; everything else is a 404. Crafted segments must never
// reach the filesystem.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9-_]{1,50}$`)

// TokenHeader carries the shared secret on exemption fetches.
const TokenHeader = "X-Exemptions-Token"

// Server serves configuration documents from a directory laid out like the
// local config path: {dir}/{archetype}.json, {dir}/rules/{archetype}/
// {rule}.json, {dir}/{archetype}-exemptions.json.
type Server struct {
	dir    string
	token  string
	logger *slog.Logger
}

// Config configures a Server.
type Config struct {
	// Dir is the config directory to serve.
	Dir string
	// Token guards the exemptions endpoint; empty disables the check.
	Token string
	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// New builds a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{dir: cfg.Dir, token: cfg.Token, logger: logger}
}

// Router builds the chi router for the protocol.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/archetypes/{name}", func(r chi.Router) {
		r.Use(s.validateNames)
		r.Get("/", s.handleArchetype)
		r.Get("/rules", s.handleRules)
		r.Get("/rules/{rule}", s.handleRule)
		r.Get("/exemptions", s.handleExemptions)
	})
	r.Post("/telemetry", s.handleTelemetry)
	return r
}

// validateNames rejects malformed path segments with 404 before lookup.
func (s *Server) validateNames(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		for _, key := range []string{"name", "rule"} {
			segment := chi.URLParam(req, key)
			if segment != "" && !namePattern.MatchString(segment) {
				s.logger.Warn("rejecting malformed path segment", "segment", segment)
				http.NotFound(w, req)
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) handleArchetype(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	s.serveFile(w, req, filepath.Join(s.dir, name+".json"))
}

func (s *Server) handleRule(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	rule := chi.URLParam(req, "rule")
	s.serveFile(w, req, filepath.Join(s.dir, "rules", name, rule+".json"))
}

// handleRules concatenates every rule document for the archetype.
func (s *Server) handleRules(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	dir := filepath.Join(s.dir, "rules", name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.NotFound(w, req)
		return
	}

	rules := make([]json.RawMessage, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if json.Valid(data) {
			rules = append(rules, data)
		}
	}
	writeJSON(w, rules)
}

func (s *Server) handleExemptions(w http.ResponseWriter, req *http.Request) {
	if s.token != "" && req.Header.Get(TokenHeader) != s.token {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	name := chi.URLParam(req, "name")
	path := filepath.Join(s.dir, name+"-exemptions.json")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// No file means no exemptions, not a missing resource.
		writeJSON(w, []any{})
		return
	}
	s.serveFile(w, req, path)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, req *http.Request) {
	var event map[string]any
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.logger.Info("telemetry event",
		"event", event["event"],
		"correlation_id", req.Header.Get("X-Correlation-Id"))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) serveFile(w http.ResponseWriter, req *http.Request, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, req)
		return
	}
	if !json.Valid(data) {
		s.logger.Error("config document is not valid JSON", "path", path)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
