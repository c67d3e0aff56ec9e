package engine

import "strings"

// Memory categories.
const (
	CategoryPersonalInfo = "personal_info"
	CategoryPreference   = "preference"
	CategoryFact         = "fact"
	CategoryRelationship = "relationship"
	CategoryGoal         = "goal"
	CategoryOther        = "other"
)

// Memory types. Constraint and goal are "upgrade" types during merges.
const (
	TypeConstraint   = "constraint"
	TypeGoal         = "goal"
	TypeRelationship = "relationship"
	TypePreference   = "preference"
	TypeFact         = "fact"
)

// Memory sources.
const (
	SourceChat    = "chat"
	SourceJournal = "journal"
	SourceManual  = "manual"
)

var validCategories = map[string]bool{
	CategoryPersonalInfo: true,
	CategoryPreference:   true,
	CategoryFact:         true,
	CategoryRelationship: true,
	CategoryGoal:         true,
	CategoryOther:        true,
}

var validTypes = map[string]bool{
	TypeConstraint:   true,
	TypeGoal:         true,
	TypeRelationship: true,
	TypePreference:   true,
	TypeFact:         true,
}

// categoryCues are checked in order; the first category with a matching
// substring wins.
var categoryCues = []struct {
	category string
	cues     []string
}{
	{CategoryPreference, []string{"like", "prefer", "favorite", "love", "hate", "dislike"}},
	{CategoryPersonalInfo, []string{"name", "age", "born", "live", "from"}},
	{CategoryRelationship, []string{"friend", "family", "relationship", "know"}},
	{CategoryGoal, []string{"goal", "want", "plan", "dream", "aspire"}},
}

// constraintCues mark limitations: allergies, refusals, hard boundaries.
var constraintCues = []string{
	"can't", "cannot", "can not", "don't", "do not", "never", "allergic", "allergy",
	"avoid", "must not", "unable", "won't", "intolerant",
}

// Categorize infers a category from simple lexical cues. Matching is by
// substring, so "likely" counts as "like".
func Categorize(content string) string {
	lower := strings.ToLower(content)
	for _, c := range categoryCues {
		if containsAny(lower, c.cues) {
			return c.category
		}
	}
	return CategoryFact
}

// InferMemoryType picks constraint when the content expresses a limitation,
// otherwise mirrors goal/relationship/preference categories, else fact.
func InferMemoryType(content, category string) string {
	if containsAny(strings.ToLower(content), constraintCues) {
		return TypeConstraint
	}
	switch category {
	case CategoryGoal:
		return TypeGoal
	case CategoryRelationship:
		return TypeRelationship
	case CategoryPreference:
		return TypePreference
	}
	return TypeFact
}

// NormalizeCategory lowercases and validates a category. Unknown or "other"
// categories are inferred from content.
func NormalizeCategory(category, content string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || category == CategoryOther || !validCategories[category] {
		return Categorize(content)
	}
	return category
}

// NormalizeMemoryType lowercases and validates a memory type, inferring it
// when missing or unknown.
func NormalizeMemoryType(memoryType, content, category string) string {
	memoryType = strings.ToLower(strings.TrimSpace(memoryType))
	if !validTypes[memoryType] {
		return InferMemoryType(content, category)
	}
	return memoryType
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
