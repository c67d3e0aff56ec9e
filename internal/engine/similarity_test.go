package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymonhq/tymon/internal/store"
)

func TestFindSimilar(t *testing.T) {
	existing := []store.Memory{
		{ID: "tea", Content: "I like tea"},
		{ID: "coffee", Content: "I like black coffee a lot"},
		{ID: "sky", Content: "The sky is blue"},
	}

	match := FindSimilar("I like black coffee", existing)
	require.NotNil(t, match)
	assert.Equal(t, "coffee", match.ID)

	// Case is ignored.
	match = FindSimilar("THE SKY today", existing)
	require.NotNil(t, match)
	assert.Equal(t, "sky", match.ID)
}

func TestFindSimilarTieGoesToFirst(t *testing.T) {
	existing := []store.Memory{
		{ID: "first", Content: "User likes hiking"},
		{ID: "second", Content: "User likes swimming"},
	}
	match := FindSimilar("User likes chess", existing)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.ID)
}

func TestFindSimilarRequiresTwoWords(t *testing.T) {
	existing := []store.Memory{{ID: "a", Content: "coffee coffee coffee"}}

	assert.Nil(t, FindSimilar("coffee", existing), "single word never matches")
	assert.Nil(t, FindSimilar("coffee coffee", existing), "repeated word is one distinct word")
	assert.Nil(t, FindSimilar("strong coffee", existing), "overlap of one is not enough")
	assert.Nil(t, FindSimilar("anything here", nil))
}
