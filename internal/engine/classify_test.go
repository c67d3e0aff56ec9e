package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"I like coffee", CategoryPreference},
		{"My name is Alex", CategoryPersonalInfo},
		{"The meeting was on Monday", CategoryFact},
		{"I HATE mornings", CategoryPreference},
		{"I live in Berlin", CategoryPersonalInfo},
		{"Sam is my best friend", CategoryRelationship},
		{"I aspire to write a novel", CategoryGoal},
		// Preference cues win over later categories.
		{"My friend would love this", CategoryPreference},
		{"", CategoryFact},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.content), tt.content)
	}
}

func TestInferMemoryType(t *testing.T) {
	tests := []struct {
		content  string
		category string
		want     string
	}{
		{"I am allergic to peanuts", CategoryPersonalInfo, TypeConstraint},
		{"I can't eat gluten", CategoryFact, TypeConstraint},
		{"I never drink alcohol", CategoryPreference, TypeConstraint},
		{"I want to run a marathon", CategoryGoal, TypeGoal},
		{"Sam is my brother", CategoryRelationship, TypeRelationship},
		{"I like coffee", CategoryPreference, TypePreference},
		{"Paris is in France", CategoryFact, TypeFact},
		{"My name is Alex", CategoryPersonalInfo, TypeFact},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferMemoryType(tt.content, tt.category), tt.content)
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryGoal, NormalizeCategory(" Goal ", "anything"))
	assert.Equal(t, CategoryPreference, NormalizeCategory("other", "I prefer tea"))
	assert.Equal(t, CategoryPreference, NormalizeCategory("", "I prefer tea"))
	assert.Equal(t, CategoryFact, NormalizeCategory("hobby", "Plays chess on Sundays"))
}

func TestNormalizeMemoryType(t *testing.T) {
	assert.Equal(t, TypeGoal, NormalizeMemoryType("GOAL", "x", CategoryFact))
	assert.Equal(t, TypeConstraint, NormalizeMemoryType("", "I cannot swim", CategoryFact))
	assert.Equal(t, TypePreference, NormalizeMemoryType("habit", "I like tea", CategoryPreference))
}
