package engine

import (
	"math"
	"time"

	"github.com/tymonhq/tymon/internal/store"
)

// Merge folds an incoming record into an existing one describing the same
// fact. Scores and TTL never regress, the journal source is sticky, and the
// memory type can only be upgraded to constraint or goal. Identity, content,
// category and creation time come from existing.
func Merge(existing, incoming store.Memory, now time.Time) store.Memory {
	now = now.UTC()
	merged := existing

	merged.ImportanceScore = math.Max(existing.ImportanceScore, incoming.ImportanceScore)
	merged.DecayScore = math.Max(existing.DecayScore, incoming.DecayScore)
	merged.Stability = math.Max(existing.Stability, incoming.Stability)
	if incoming.TTLDays > existing.TTLDays {
		merged.TTLDays = incoming.TTLDays
	}

	if existing.Source == SourceJournal || incoming.Source == SourceJournal {
		merged.Source = SourceJournal
	}

	switch {
	case existing.MemoryType == TypeConstraint || incoming.MemoryType == TypeConstraint:
		merged.MemoryType = TypeConstraint
	case existing.MemoryType == TypeGoal || incoming.MemoryType == TypeGoal:
		merged.MemoryType = TypeGoal
	}

	merged.IsPinned = existing.IsPinned || incoming.IsPinned
	merged.AccessCount = existing.AccessCount + 1
	merged.LastAccessed = now
	merged.LastUsedInChat = now
	return merged
}

// mergeUpdate is the partial update that turns existing into merged.
func mergeUpdate(merged store.Memory) store.MemoryUpdate {
	ttl := merged.TTLDays
	return store.MemoryUpdate{
		ImportanceScore: &merged.ImportanceScore,
		DecayScore:      &merged.DecayScore,
		Stability:       &merged.Stability,
		TTLDays:         &ttl,
		MemoryType:      &merged.MemoryType,
		Source:          &merged.Source,
		IsPinned:        &merged.IsPinned,
		AccessDelta:     1,
		LastAccessed:    &merged.LastAccessed,
		LastUsedInChat:  &merged.LastUsedInChat,
	}
}
