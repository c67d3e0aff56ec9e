package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseCandidates(t *testing.T) {
	reply := "Here you go:\n```json\n" +
		`[{"content":"User likes coffee","importance_score":0.7,"category":"preference"},` +
		`{"content":5},` +
		`{"content":"User is allergic to nuts","memory_type":"constraint","ttl_days":400}]` +
		"\n```"

	cs, err := parseCandidates(reply)
	require.NoError(t, err)
	require.Len(t, cs, 2, "malformed element is skipped")

	assert.Equal(t, "User likes coffee", cs[0].Content)
	require.NotNil(t, cs[0].ImportanceScore)
	assert.Equal(t, 0.7, *cs[0].ImportanceScore)
	assert.Nil(t, cs[0].Stability)

	assert.Equal(t, "constraint", cs[1].MemoryType)
	require.NotNil(t, cs[1].TTLDays)
	assert.Equal(t, 400.0, *cs[1].TTLDays)
}

func TestParseCandidatesNumericStrings(t *testing.T) {
	reply := `[{"content":"User is allergic to peanuts and shellfish","importance_score":"0.9",` +
		`"stability":" 0.8 ","ttl_days":"90","memory_type":"constraint"}]`

	cs, err := parseCandidates(reply)
	require.NoError(t, err)
	require.Len(t, cs, 1)

	require.NotNil(t, cs[0].ImportanceScore)
	assert.Equal(t, 0.9, *cs[0].ImportanceScore)
	require.NotNil(t, cs[0].Stability)
	assert.Equal(t, 0.8, *cs[0].Stability)
	require.NotNil(t, cs[0].TTLDays)
	assert.Equal(t, 90.0, *cs[0].TTLDays)

	m, ok := cs[0].toMemory(testUser, SourceChat, testNow)
	require.True(t, ok)
	assert.Equal(t, 90, m.TTLDays)
}

func TestParseCandidatesUnparseableNumbers(t *testing.T) {
	reply := `[{"content":"User collects vintage fountain pens","importance_score":"very high",` +
		`"stability":true,"ttl_days":{"days":30}},` +
		`{"content":"User drinks oat milk","importance_score":"NaN","ttl_days":null}]`

	cs, err := parseCandidates(reply)
	require.NoError(t, err)
	require.Len(t, cs, 2, "bad numbers fall back to defaults instead of dropping the candidate")

	for _, c := range cs {
		assert.Nil(t, c.ImportanceScore, c.Content)
		assert.Nil(t, c.Stability, c.Content)
		assert.Nil(t, c.TTLDays, c.Content)
	}

	m, ok := cs[0].toMemory(testUser, SourceChat, testNow)
	require.True(t, ok)
	assert.Equal(t, defaultStability, m.Stability)
	assert.Equal(t, TTLDays(m.ImportanceScore, m.MemoryType, defaultStability), m.TTLDays)
}

func TestParseCandidatesRejects(t *testing.T) {
	for _, reply := range []string{
		"I could not find anything worth remembering.",
		`{"content":"not an array"}`,
		"",
	} {
		_, err := parseCandidates(reply)
		assert.Error(t, err, reply)
	}
}

func TestParseCandidatesEmptyArray(t *testing.T) {
	cs, err := parseCandidates("[]")
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestCandidateToMemoryDefaults(t *testing.T) {
	c := Candidate{Content: "  User lives in Lisbon with two cats  "}

	m, ok := c.toMemory(testUser, SourceChat, testNow)
	require.True(t, ok)

	assert.Equal(t, testUser, m.UserID)
	assert.Equal(t, "User lives in Lisbon with two cats", m.Content)
	assert.Equal(t, CategoryPersonalInfo, m.Category)
	assert.Equal(t, TypeFact, m.MemoryType)
	assert.InDelta(t, 0.55, m.ImportanceScore, 1e-9)
	assert.Equal(t, 0.5, m.Stability)
	assert.Equal(t, TTLDays(m.ImportanceScore, m.MemoryType, 0.5), m.TTLDays)
	assert.InDelta(t, m.ImportanceScore, m.DecayScore, 1e-4, "fresh memory is undecayed")
	assert.Equal(t, 0, m.AccessCount)
	assert.Equal(t, testNow, m.LastAccessed)
	assert.Equal(t, testNow, m.CreatedAt)
	assert.Equal(t, SourceChat, m.Source)
}

func TestCandidateToMemoryClamps(t *testing.T) {
	c := Candidate{
		Content:         "User is training for a marathon in spring",
		ImportanceScore: ptr(3.0),
		Category:        "GOAL",
		MemoryType:      "hobby",
		Stability:       ptr(-1.0),
		TTLDays:         ptr(5000.0),
	}

	m, ok := c.toMemory(testUser, SourceJournal, testNow)
	require.True(t, ok)

	assert.Equal(t, CategoryGoal, m.Category)
	assert.Equal(t, TypeGoal, m.MemoryType)
	assert.Equal(t, 0.0, m.Stability)
	assert.Equal(t, MaxTTLDays, m.TTLDays)
	assert.LessOrEqual(t, m.ImportanceScore, 1.0)
	assert.Equal(t, SourceJournal, m.Source)
}

func TestCandidateToMemoryTTL(t *testing.T) {
	base := Candidate{Content: "User speaks fluent Portuguese at work"}

	short := base
	short.TTLDays = ptr(2.0)
	m, _ := short.toMemory(testUser, SourceChat, testNow)
	assert.Equal(t, MinTTLDays, m.TTLDays)

	negative := base
	negative.TTLDays = ptr(-3.0)
	m, _ = negative.toMemory(testUser, SourceChat, testNow)
	assert.Equal(t, TTLDays(m.ImportanceScore, m.MemoryType, m.Stability), m.TTLDays)
}

func TestCandidateToMemoryEmpty(t *testing.T) {
	_, ok := Candidate{Content: "   "}.toMemory(testUser, SourceChat, testNow)
	assert.False(t, ok)
}
