package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tymonhq/tymon/internal/engine"
	"github.com/tymonhq/tymon/internal/store"
)

// Request bodies larger than this are rejected.
const maxBodyBytes = 1 << 20

// Server is the tymon HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time

	// requestTimeout bounds the work a single request may do, including model calls.
	requestTimeout time.Duration
}

// New creates a new Server over the given database and engine.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:             db,
		engine:         eng,
		version:        version,
		started:        time.Now(),
		requestTimeout: 2 * time.Minute,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/chat", s.handleChat)
		r.Get("/chat/history/{userID}", s.handleChatHistory)
		r.Get("/chat/conversations/{userID}", s.handleConversations)

		r.Route("/memories/{userID}", func(r chi.Router) {
			r.Get("/", s.handleListMemories)
			r.Post("/", s.handleRemember)
			r.Get("/relevant", s.handleRelevant)
			r.Post("/extract", s.handleExtract)
			r.Post("/prune", s.handlePrune)
			r.Put("/{memoryID}/pin", s.handlePin)
			r.Delete("/{memoryID}", s.handleForget)
		})

		r.Route("/journals", func(r chi.Router) {
			r.Post("/user", s.handleCreateJournal)
			r.Route("/user/{userID}", func(r chi.Router) {
				r.Get("/", s.handleListJournals)
				r.Get("/search", s.handleSearchJournals)
				r.Get("/{journalID}", s.handleGetJournal)
				r.Put("/{journalID}", s.handleUpdateJournal)
				r.Delete("/{journalID}", s.handleDeleteJournal)
			})
			r.Get("/ai/{userID}", s.handleListReflections)
			r.Get("/ai/{userID}/{journalID}", s.handleGetReflection)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"llm":     s.engine.LLM != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine and store errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNoLLM):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
