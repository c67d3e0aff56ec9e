package engine

import (
	"math"
	"strings"
	"time"
)

// Tier is a coarse importance bucket used to pick base TTL and half-life.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Retention horizon bounds, in days.
const (
	MinTTLDays = 7
	MaxTTLDays = 1825
)

// Scoring tables. Lookups on unknown memory types yield 0.
var (
	baseTTLDays = map[Tier]float64{TierHigh: 365, TierMedium: 180, TierLow: 30}

	ttlTypeBonus = map[string]float64{
		TypeConstraint:   120,
		TypeGoal:         90,
		TypeRelationship: 90,
		TypePreference:   30,
		TypeFact:         0,
	}

	baseHalfLifeDays = map[Tier]float64{TierHigh: 180, TierMedium: 90, TierLow: 30}

	halfLifeTypeBonus = map[string]float64{
		TypeConstraint:   60,
		TypeGoal:         45,
		TypeRelationship: 45,
		TypePreference:   30,
		TypeFact:         0,
	}

	importanceTypeBonus = map[string]float64{
		TypeConstraint:   0.15,
		TypeGoal:         0.10,
		TypeRelationship: 0.10,
		TypePreference:   0.05,
		TypeFact:         0,
	}
)

const (
	decayFloor        = 0.1
	personalInfoBonus = 0.05
	journalBonus      = 0.15
	terseContentCost  = 0.1
	terseWordCount    = 4
)

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUnit(v float64) float64 { return Clamp(v, 0, 1) }

// ClampTTL bounds a TTL to [MinTTLDays, MaxTTLDays].
func ClampTTL(days int) int {
	if days < MinTTLDays {
		return MinTTLDays
	}
	if days > MaxTTLDays {
		return MaxTTLDays
	}
	return days
}

// TierFor classifies an importance score: high ≥0.7, medium ≥0.4, else low.
func TierFor(importance float64) Tier {
	switch {
	case importance >= 0.7:
		return TierHigh
	case importance >= 0.4:
		return TierMedium
	default:
		return TierLow
	}
}

// stabilityFactor scales half-lives and importance: 0.6 at stability 0, 1.4 at 1.
func stabilityFactor(stability float64) float64 {
	return 0.6 + 0.8*clampUnit(stability)
}

// TTLDays computes the retention horizon for a memory.
func TTLDays(importance float64, memoryType string, stability float64) int {
	base := baseTTLDays[TierFor(importance)] + ttlTypeBonus[memoryType]
	days := int(base * (0.5 + clampUnit(stability)))
	return ClampTTL(days)
}

// DecayScore returns the time-discounted importance of a memory last accessed
// at lastAccessed. A zero lastAccessed counts as "just accessed".
// The multiplier never drops below 0.1 so memories are never fully zeroed.
func DecayScore(importance float64, lastAccessed time.Time, memoryType string, stability float64, now time.Time) float64 {
	importance = clampUnit(importance)

	var days float64
	if !lastAccessed.IsZero() {
		days = math.Max(0, now.UTC().Sub(lastAccessed.UTC()).Hours()/24)
	}

	halfLife := baseHalfLifeDays[TierFor(importance)]*stabilityFactor(stability) + halfLifeTypeBonus[memoryType]
	mult := math.Max(decayFloor, 1-days/math.Max(1, halfLife))
	return round4(importance * mult)
}

// AdjustImportance applies the rule-based adjustments to a raw importance:
// stability scaling, type and category bonuses, the journal bonus and a
// penalty for terse content.
func AdjustImportance(raw float64, memoryType, category string, stability float64, content, source string) float64 {
	score := clampUnit(raw) * stabilityFactor(stability)
	score += importanceTypeBonus[memoryType]
	if category == CategoryPersonalInfo {
		score += personalInfoBonus
	}
	if source == SourceJournal {
		score += journalBonus
	}
	if len(strings.Fields(content)) < terseWordCount {
		score -= terseContentCost
	}
	return clampUnit(score)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
