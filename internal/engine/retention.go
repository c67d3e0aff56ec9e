package engine

import (
	"time"

	"github.com/tymonhq/tymon/internal/store"
)

// A memory past its TTL survives only if it has proven valuable.
const (
	provenImportance  = 0.8
	provenAccessCount = 5
)

// daysSince returns whole days elapsed from t to now, floored at 0.
// A zero t yields 0.
func daysSince(t, now time.Time) int {
	if t.IsZero() {
		return 0
	}
	d := now.UTC().Sub(t.UTC())
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

func provenValuable(m store.Memory) bool {
	return m.ImportanceScore >= provenImportance && m.AccessCount >= provenAccessCount
}

// IsExpired reports whether a memory has outlived its TTL. Pinned memories and
// memories without a TTL never expire.
func IsExpired(m store.Memory, now time.Time) bool {
	if m.IsPinned {
		return false
	}
	if m.TTLDays > 0 && daysSince(m.CreatedAt, now) > m.TTLDays {
		return !provenValuable(m)
	}
	return false
}

// ShouldKeep is the softer, access-pattern based retention filter.
// High importance is always kept; medium is kept while younger than 30 days
// or accessed 5+ times; low while younger than 7 days or accessed 3+ times.
// Anything those rules cannot classify (NaN importance) is kept.
func ShouldKeep(m store.Memory, daysSinceCreation, accessCount int) bool {
	if m.IsPinned {
		return true
	}
	if m.TTLDays > 0 && daysSinceCreation > m.TTLDays {
		return m.ImportanceScore >= provenImportance && accessCount >= provenAccessCount
	}

	imp := m.ImportanceScore
	switch {
	case imp >= 0.7:
		return true
	case imp >= 0.4:
		return daysSinceCreation < 30 || accessCount >= 5
	case imp < 0.4:
		return daysSinceCreation < 7 || accessCount >= 3
	}
	return true
}

// FilterUnimportant drops memories ShouldKeep rejects, preserving order.
func FilterUnimportant(memories []store.Memory, now time.Time) []store.Memory {
	kept := make([]store.Memory, 0, len(memories))
	for _, m := range memories {
		if ShouldKeep(m, daysSince(m.CreatedAt, now), m.AccessCount) {
			kept = append(kept, m)
		}
	}
	return kept
}
