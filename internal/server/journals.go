package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tymonhq/tymon/internal/engine"
	"github.com/tymonhq/tymon/internal/store"
)

// Upper bound on journal page sizes.
const maxJournalLimit = 200

func journalPage(r *http.Request, def int) (limit, offset int) {
	limit = intParam(r, "limit", def)
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}
	return limit, intParam(r, "offset", 0)
}

// splitTags parses a comma-separated tag list.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func writeJournals[T any](w http.ResponseWriter, entries []T) {
	if entries == nil {
		entries = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"journals": entries,
		"count":    len(entries),
	})
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var req engine.JournalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	j, err := s.engine.Journal(ctx, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	limit, offset := journalPage(r, 50)
	entries, err := s.db.UserJournals(store.JournalQuery{
		UserID: chi.URLParam(r, "userID"),
		Tags:   splitTags(r.URL.Query().Get("tags")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJournals(w, entries)
}

func (s *Server) handleSearchJournals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	limit, _ := journalPage(r, 20)

	entries, err := s.db.SearchUserJournals(chi.URLParam(r, "userID"), q, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJournals(w, entries)
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	j, err := s.db.GetUserJournal(chi.URLParam(r, "journalID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string    `json:"content"`
		Tags    *[]string `json:"tags"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	var tags []string // nil keeps the stored tags
	if req.Tags != nil {
		tags = *req.Tags
	}

	j, err := s.db.UpdateUserJournal(chi.URLParam(r, "journalID"), chi.URLParam(r, "userID"), content, tags)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *Server) handleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	ok, err := s.db.DeleteUserJournal(chi.URLParam(r, "journalID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		writeEngineError(w, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	limit, offset := journalPage(r, 50)
	entries, err := s.db.AIJournals(chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJournals(w, entries)
}

func (s *Server) handleGetReflection(w http.ResponseWriter, r *http.Request) {
	j, err := s.db.GetAIJournal(chi.URLParam(r, "journalID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
