package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

// extract asks the model for candidates. Every failure mode (no model, model
// error, timeout, unparseable reply) yields zero candidates and is only logged.
func (e *Engine) extract(ctx context.Context, text string) []Candidate {
	if e.LLM == nil {
		log.Printf("extraction: skipped, %v", ErrNoLLM)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.Cfg.ExtractionTimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := e.LLM.Complete(ctx, llm.ExtractionPrompt(text))
	if err != nil {
		log.Printf("extraction: model call failed: %v", err)
		return nil
	}
	if resp == nil {
		return nil
	}

	candidates, err := parseCandidates(resp.Content)
	if err != nil {
		log.Printf("extraction: unparseable response: %v", err)
		return nil
	}
	return candidates
}

// ExtractAndStore extracts memories from conversation or journal text and
// consolidates them into the user's store: each candidate either merges into a
// similar existing memory or is inserted. The user's budget is enforced
// afterwards, even when nothing was extracted. Returns the stored or merged
// records.
func (e *Engine) ExtractAndStore(ctx context.Context, userID, text, source string) ([]store.Memory, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if source == "" {
		source = SourceChat
	}

	candidates := e.extract(ctx, text)

	now := e.now()
	incoming := make([]store.Memory, 0, len(candidates))
	for _, c := range candidates {
		m, ok := c.toMemory(userID, source, now)
		if !ok {
			continue
		}
		incoming = append(incoming, m)
	}
	if len(incoming) > 0 {
		if err := e.Store.EnsureUser(userID); err != nil {
			return nil, fmt.Errorf("ensure user: %w", err)
		}
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	stored := make([]store.Memory, 0, len(incoming))
	for _, m := range incoming {
		saved, merged, err := e.consolidate(m, now)
		if err != nil {
			return stored, err
		}
		if merged {
			log.Printf("extraction: merged into %s [%s]", saved.ID, saved.MemoryType)
		} else {
			log.Printf("extraction: stored %s [%s/%s %.2f]", saved.ID, saved.Category, saved.MemoryType, saved.ImportanceScore)
		}
		stored = append(stored, *saved)
	}

	if _, err := e.prune(userID); err != nil {
		log.Printf("extraction: prune %s: %v", userID, err)
	}
	return stored, nil
}

// consolidate merges m into the most similar existing memory or inserts it.
// Callers must hold the user's lock.
func (e *Engine) consolidate(m store.Memory, now time.Time) (*store.Memory, bool, error) {
	existing, err := e.Store.SelectMemories(store.MemoryQuery{
		UserID: m.UserID,
		OrderBy: []store.Order{
			{Column: "importance_score", Desc: true},
			{Column: "last_accessed", Desc: true},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("load memories: %w", err)
	}

	if match := FindSimilar(m.Content, existing); match != nil {
		merged := Merge(*match, m, now)
		saved, err := e.Store.UpdateMemory(match.ID, mergeUpdate(merged))
		if err != nil {
			return nil, false, fmt.Errorf("merge memory %s: %w", match.ID, err)
		}
		return saved, true, nil
	}

	if err := e.Store.InsertMemory(&m); err != nil {
		return nil, false, fmt.Errorf("create memory: %w", err)
	}
	return &m, false, nil
}

// RememberRequest is a manually supplied memory.
type RememberRequest struct {
	Content         string   `json:"content"`
	ImportanceScore *float64 `json:"importance_score,omitempty"`
	Category        string   `json:"category,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	Stability       *float64 `json:"stability,omitempty"`
	TTLDays         *float64 `json:"ttl_days,omitempty"`
	Pinned          bool     `json:"pinned,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// Remember stores a memory supplied directly by the user, through the same
// scoring and merge path as extracted memories.
func (e *Engine) Remember(ctx context.Context, userID string, req RememberRequest) (*store.Memory, error) {
	c := Candidate{
		Content:         req.Content,
		ImportanceScore: req.ImportanceScore,
		Category:        req.Category,
		MemoryType:      req.MemoryType,
		Stability:       req.Stability,
		TTLDays:         req.TTLDays,
	}
	source := req.Source
	if source == "" {
		source = SourceManual
	}

	now := e.now()
	m, ok := c.toMemory(userID, source, now)
	if !ok {
		return nil, ErrEmptyContent
	}
	m.IsPinned = req.Pinned

	if err := e.Store.EnsureUser(userID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	saved, _, err := e.consolidate(m, now)
	if err != nil {
		return nil, err
	}
	if _, err := e.prune(userID); err != nil {
		log.Printf("remember: prune %s: %v", userID, err)
	}
	return saved, nil
}
