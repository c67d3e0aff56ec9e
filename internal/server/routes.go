package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tymonhq/tymon/internal/engine"
	"github.com/tymonhq/tymon/internal/store"
)

// Upper bound on the history limit a client may request.
const maxHistoryLimit = 200

func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// intParam parses a positive integer query parameter, returning def when it is
// absent or invalid.
func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req engine.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	res, err := s.engine.Chat(ctx, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	convID := r.URL.Query().Get("conversation_id")
	limit := intParam(r, "limit", 50)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	turns, err := s.db.ConversationTurns(userID, convID, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"conversation_id": convID,
		"history":         turns,
		"count":           len(turns),
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.db.Conversations(chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if convs == nil {
		convs = []store.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"count":         len(convs),
	})
}

func writeMemories(w http.ResponseWriter, status int, memories []store.Memory) {
	if memories == nil {
		memories = []store.Memory{}
	}
	writeJSON(w, status, map[string]any{
		"memories": memories,
		"count":    len(memories),
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.engine.All(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeMemories(w, http.StatusOK, memories)
}

func (s *Server) handleRelevant(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}

	memories, err := s.engine.Relevant(r.Context(), chi.URLParam(r, "userID"), query, intParam(r, "limit", 0))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeMemories(w, http.StatusOK, memories)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req engine.RememberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source != "" && !validSource(req.Source) {
		writeError(w, http.StatusBadRequest, "unknown source "+strconv.Quote(req.Source))
		return
	}

	m, err := s.engine.Remember(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func validSource(source string) bool {
	switch source {
	case engine.SourceChat, engine.SourceJournal, engine.SourceManual:
		return true
	}
	return false
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Source string `json:"source"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	if req.Source != "" && !validSource(req.Source) {
		writeError(w, http.StatusBadRequest, "unknown source "+strconv.Quote(req.Source))
		return
	}
	if s.engine.LLM == nil {
		writeEngineError(w, engine.ErrNoLLM)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	memories, err := s.engine.ExtractAndStore(ctx, chi.URLParam(r, "userID"), req.Text, req.Source)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeMemories(w, http.StatusOK, memories)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Prune(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pinned *bool `json:"pinned"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Pinned == nil {
		writeError(w, http.StatusBadRequest, "pinned required")
		return
	}

	m, err := s.engine.Pin(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "memoryID"), *req.Pinned)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Forget(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "memoryID")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
