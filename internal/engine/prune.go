package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/tymonhq/tymon/internal/store"
)

// PruneResult reports what a prune pass removed.
type PruneResult struct {
	Expired   int `json:"expired"`
	Evicted   int `json:"evicted"`
	Remaining int `json:"remaining"`
}

// Prune enforces the per-user memory budget: hard-expired memories are
// deleted first, then the lowest-value non-pinned memories are evicted until
// the user is within max_memories_per_user.
func (e *Engine) Prune(ctx context.Context, userID string) (PruneResult, error) {
	unlock := e.locks.lock(userID)
	defer unlock()
	return e.prune(userID)
}

// prune is Prune without locking. Callers must hold the user's lock.
func (e *Engine) prune(userID string) (PruneResult, error) {
	var res PruneResult
	now := e.now()

	memories, err := e.Store.SelectMemories(store.MemoryQuery{UserID: userID})
	if err != nil {
		return res, fmt.Errorf("load memories: %w", err)
	}

	survivors := make([]store.Memory, 0, len(memories))
	for _, m := range memories {
		if !IsExpired(m, now) {
			survivors = append(survivors, m)
			continue
		}
		ok, err := e.Store.DeleteMemory(m.ID, userID)
		if err != nil {
			return res, fmt.Errorf("delete expired %s: %w", m.ID, err)
		}
		if ok {
			res.Expired++
		}
	}

	res.Remaining = len(survivors)
	excess := res.Remaining - e.Cfg.MaxMemoriesPerUser
	if excess > 0 {
		evictable := make([]store.Memory, 0, len(survivors))
		for _, m := range survivors {
			if !m.IsPinned {
				evictable = append(evictable, m)
			}
		}
		sortForEviction(evictable)
		if excess > len(evictable) {
			excess = len(evictable)
		}

		for _, m := range evictable[:excess] {
			ok, err := e.Store.DeleteMemory(m.ID, userID)
			if err != nil {
				return res, fmt.Errorf("evict %s: %w", m.ID, err)
			}
			if ok {
				res.Evicted++
				res.Remaining--
			}
		}
	}

	if res.Expired > 0 || res.Evicted > 0 {
		log.Printf("prune: %s expired=%d evicted=%d remaining=%d", userID, res.Expired, res.Evicted, res.Remaining)
	}
	return res, nil
}

// sortForEviction orders memories lowest value first: effective score, then
// raw importance, then oldest.
func sortForEviction(ms []store.Memory) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.EffectiveScore() != b.EffectiveScore() {
			return a.EffectiveScore() < b.EffectiveScore()
		}
		if a.ImportanceScore != b.ImportanceScore {
			return a.ImportanceScore < b.ImportanceScore
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
