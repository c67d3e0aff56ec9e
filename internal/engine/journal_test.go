package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymonhq/tymon/internal/config"
	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

// journalFailStore rejects user journal writes.
type journalFailStore struct {
	*store.DB
}

func (journalFailStore) AddUserJournal(*store.UserJournal) error {
	return errors.New("read-only")
}

func TestJournal(t *testing.T) {
	mock := &llm.MockClient{Response: reply(`[{"content": "User started learning the cello", "importance_score": 0.6, "category": "goal"}]`)}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	j, err := e.Journal(context.Background(), JournalRequest{
		UserID:  testUser,
		Content: "  Today I had my first cello lesson.  ",
		Tags:    []string{"music"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, "Today I had my first cello lesson.", j.Content)

	saved, err := db.GetUserJournal(j.ID, testUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"music"}, saved.Tags)

	require.Equal(t, 1, mock.CallCount())
	assert.Contains(t, mock.Calls[0], "User journal entry:\nToday I had my first cello lesson.")

	memories, err := db.SelectMemories(store.MemoryQuery{UserID: testUser})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, SourceJournal, memories[0].Source)
	assert.Equal(t, TypeGoal, memories[0].MemoryType)
}

func TestJournalWithoutModel(t *testing.T) {
	e, db := testEngine(t, nil, config.MemoryConfig{})

	j, err := e.Journal(context.Background(), JournalRequest{UserID: testUser, Content: "Rainy walk, good podcast."})
	require.NoError(t, err, "the entry is kept when extraction cannot run")

	entries, err := db.UserJournals(store.JournalQuery{UserID: testUser})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, j.ID, entries[0].ID)
	assert.Equal(t, 0, countMemories(t, db, testUser))
}

func TestJournalSurvivesExtractionFailure(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("overloaded")}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	_, err := e.Journal(context.Background(), JournalRequest{UserID: testUser, Content: "Finished the novel."})
	require.NoError(t, err)

	entries, err := db.UserJournals(store.JournalQuery{UserID: testUser})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournalRejects(t *testing.T) {
	mock := &llm.MockClient{Response: reply("[]")}
	e, _ := testEngine(t, mock, config.MemoryConfig{})
	ctx := context.Background()

	_, err := e.Journal(ctx, JournalRequest{UserID: testUser, Content: " \n "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	failing := New(journalFailStore{testDB(t)}, mock, config.MemoryConfig{})
	_, err = failing.Journal(ctx, JournalRequest{UserID: testUser, Content: "Entry"})
	assert.Error(t, err)
	assert.Equal(t, 0, mock.CallCount(), "nothing is extracted from an unsaved entry")
}
