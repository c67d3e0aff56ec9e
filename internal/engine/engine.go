package engine

import (
	"errors"
	"log"
	"time"

	"github.com/tymonhq/tymon/internal/config"
	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

var (
	// ErrNoLLM is returned by operations that need a model when none is configured.
	ErrNoLLM = errors.New("no LLM configured")
	// ErrEmptyContent is returned when a memory or message has no text.
	ErrEmptyContent = errors.New("content is empty")

	errEmptyResponse = errors.New("model returned no response")
)

// Store is the persistence the engine needs. *store.DB implements it.
type Store interface {
	InsertMemory(m *store.Memory) error
	GetMemory(id string) (*store.Memory, error)
	SelectMemories(q store.MemoryQuery) ([]store.Memory, error)
	UpdateMemory(id string, u store.MemoryUpdate) (*store.Memory, error)
	DeleteMemory(id, userID string) (bool, error)
	CountMemories(userID string) (int, error)
	UserIDs() ([]string, error)

	EnsureUser(userID string) error
	AddTurn(t *store.Turn) error
	RecentTurns(userID, conversationID string, limit int) ([]store.Turn, error)

	AddUserJournal(j *store.UserJournal) error
	AddAIJournal(j *store.AIJournal) error
}

// Engine orchestrates the memory lifecycle: extraction, consolidation,
// retrieval, pruning, chat and journaling.
type Engine struct {
	Store Store
	LLM   llm.Client // nil = memory-only operation
	Cfg   config.MemoryConfig

	locks  *userLocks
	now    func() time.Time
	stopCh chan struct{}
}

// New creates a new Engine. Zero values in cfg fall back to defaults.
func New(st Store, client llm.Client, cfg config.MemoryConfig) *Engine {
	def := config.Default().Memory
	if cfg.MaxMemoriesPerUser <= 0 {
		cfg.MaxMemoriesPerUser = def.MaxMemoriesPerUser
	}
	if cfg.MaxRelevancePool <= 0 {
		cfg.MaxRelevancePool = def.MaxRelevancePool
	}
	if cfg.RelevantLimit <= 0 {
		cfg.RelevantLimit = def.RelevantLimit
	}
	if cfg.ExtractionTimeoutSeconds <= 0 {
		cfg.ExtractionTimeoutSeconds = def.ExtractionTimeoutSeconds
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	return &Engine{
		Store:  st,
		LLM:    client,
		Cfg:    cfg,
		locks:  newUserLocks(),
		now:    func() time.Time { return time.Now().UTC() },
		stopCh: make(chan struct{}),
	}
}

// StartDecayTimer refreshes stored decay scores on startup and then daily so
// list and prune orderings reflect elapsed time even for unread memories.
func (e *Engine) StartDecayTimer() {
	e.runDecay()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runDecay()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runDecay() {
	if updated, err := e.RefreshDecay(); err != nil {
		log.Printf("decay error: %v", err)
	} else if updated > 0 {
		log.Printf("decay: updated %d memories", updated)
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// RefreshDecay recomputes decay_score for every stored memory from its last
// access time. Access counts and timestamps are left untouched. Returns the
// number of memories whose score changed.
func (e *Engine) RefreshDecay() (int, error) {
	users, err := e.Store.UserIDs()
	if err != nil {
		return 0, err
	}

	now := e.now()
	updated := 0
	for _, userID := range users {
		unlock := e.locks.lock(userID)
		memories, err := e.Store.SelectMemories(store.MemoryQuery{UserID: userID})
		if err != nil {
			unlock()
			return updated, err
		}
		for _, m := range memories {
			last := m.LastAccessed
			if last.IsZero() {
				last = m.CreatedAt
			}
			score := DecayScore(m.ImportanceScore, last, m.MemoryType, m.Stability, now)
			if score == m.DecayScore {
				continue
			}
			if _, err := e.Store.UpdateMemory(m.ID, store.MemoryUpdate{DecayScore: &score}); err != nil {
				log.Printf("decay: update %s: %v", m.ID, err)
				continue
			}
			updated++
		}
		unlock()
	}
	return updated, nil
}
