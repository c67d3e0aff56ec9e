package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/tymonhq/tymon/internal/store"
)

// matchCount counts query words that appear as substrings of content.
// Repeated query words count each time.
func matchCount(queryWords []string, content string) int {
	lower := strings.ToLower(content)
	n := 0
	for _, w := range queryWords {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

// Relevant returns up to limit memories matching query, best first.
//
// The candidate pool is the user's top max_relevance_pool memories by
// importance then recency. Expired and non-matching memories are dropped.
// Every remaining candidate has its use recorded, including those cut by limit.
func (e *Engine) Relevant(ctx context.Context, userID, query string, limit int) ([]store.Memory, error) {
	if limit <= 0 {
		limit = e.Cfg.RelevantLimit
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	pool, err := e.Store.SelectMemories(store.MemoryQuery{
		UserID: userID,
		OrderBy: []store.Order{
			{Column: "importance_score", Desc: true},
			{Column: "last_accessed", Desc: true},
		},
		Limit: e.Cfg.MaxRelevancePool,
	})
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}

	now := e.now()
	type scored struct {
		mem     store.Memory
		matches int
	}
	var hits []scored
	for _, m := range pool {
		if IsExpired(m, now) {
			continue
		}
		n := matchCount(words, m.Content)
		if n == 0 {
			continue
		}

		decay := DecayScore(m.ImportanceScore, now, m.MemoryType, m.Stability, now)
		updated, err := e.Store.UpdateMemory(m.ID, store.MemoryUpdate{
			DecayScore:     &decay,
			AccessDelta:    1,
			LastAccessed:   &now,
			LastUsedInChat: &now,
		})
		if err != nil {
			log.Printf("retrieve: record use of %s: %v", m.ID, err)
		} else {
			m = *updated
		}
		hits = append(hits, scored{mem: m, matches: n})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].matches != hits[j].matches {
			return hits[i].matches > hits[j].matches
		}
		return hits[i].mem.EffectiveScore() > hits[j].mem.EffectiveScore()
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]store.Memory, len(hits))
	for i, h := range hits {
		out[i] = h.mem
	}
	return out, nil
}

// All returns a user's memories newest first, without those the soft
// retention filter would drop.
func (e *Engine) All(ctx context.Context, userID string) ([]store.Memory, error) {
	memories, err := e.Store.SelectMemories(store.MemoryQuery{
		UserID:  userID,
		OrderBy: []store.Order{{Column: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	return FilterUnimportant(memories, e.now()), nil
}

// Pin sets or clears a memory's pin. The memory must belong to userID.
func (e *Engine) Pin(ctx context.Context, userID, memoryID string, pinned bool) (*store.Memory, error) {
	m, err := e.Store.GetMemory(memoryID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, store.ErrNotFound
	}
	return e.Store.UpdateMemory(memoryID, store.MemoryUpdate{IsPinned: &pinned})
}

// Forget deletes a memory owned by userID.
func (e *Engine) Forget(ctx context.Context, userID, memoryID string) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	ok, err := e.Store.DeleteMemory(memoryID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}
