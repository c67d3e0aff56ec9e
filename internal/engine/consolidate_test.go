package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymonhq/tymon/internal/config"
	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

const twoFacts = `[
  {"content": "User drinks black coffee every morning", "importance_score": 0.6, "category": "preference"},
  {"content": "User has a sister named Maya", "importance_score": 0.7, "category": "relationship", "stability": 0.8}
]`

func reply(content string) *llm.Response {
	return &llm.Response{Content: content}
}

// blockingClient never answers before its context is done.
type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, prompt string) (*llm.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func countMemories(t *testing.T, db *store.DB, userID string) int {
	t.Helper()
	n, err := db.CountMemories(userID)
	require.NoError(t, err)
	return n
}

func TestExtractAndStore(t *testing.T) {
	mock := &llm.MockClient{Response: reply(twoFacts)}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	stored, err := e.ExtractAndStore(context.Background(), testUser, "User: I drink black coffee every morning", SourceChat)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 2, countMemories(t, db, testUser))

	coffee := mustGet(t, db, stored[0].ID)
	assert.Equal(t, CategoryPreference, coffee.Category)
	assert.Equal(t, TypePreference, coffee.MemoryType)
	assert.Equal(t, SourceChat, coffee.Source)
	assert.Greater(t, coffee.TTLDays, 0)

	sister := mustGet(t, db, stored[1].ID)
	assert.Equal(t, TypeRelationship, sister.MemoryType)
	assert.Equal(t, 0.8, sister.Stability)

	require.Equal(t, 1, mock.CallCount())
	assert.Contains(t, mock.Calls[0], "I drink black coffee every morning")

	u, err := db.GetUser(testUser)
	require.NoError(t, err)
	assert.NotNil(t, u, "owner is created on first write")
}

func TestExtractAndStoreMergesSimilar(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.Response{
		reply(`[{"content": "User drinks black coffee every morning", "importance_score": 0.5}]`),
		reply(`[{"content": "User drinks black coffee daily", "importance_score": 0.9, "memory_type": "constraint"}]`),
	}}
	e, db := testEngine(t, mock, config.MemoryConfig{})
	ctx := context.Background()

	first, err := e.ExtractAndStore(ctx, testUser, "first conversation", SourceChat)
	require.NoError(t, err)
	second, err := e.ExtractAndStore(ctx, testUser, "second conversation", SourceJournal)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, countMemories(t, db, testUser))

	m := mustGet(t, db, first[0].ID)
	assert.Equal(t, "User drinks black coffee every morning", m.Content, "existing content is kept")
	assert.GreaterOrEqual(t, m.ImportanceScore, first[0].ImportanceScore)
	assert.Equal(t, TypeConstraint, m.MemoryType)
	assert.Equal(t, SourceJournal, m.Source)
	assert.Equal(t, 1, m.AccessCount)
}

func TestExtractAndStoreFailuresYieldNothing(t *testing.T) {
	tests := []struct {
		name   string
		client llm.Client
	}{
		{"no model", nil},
		{"model error", &llm.MockClient{Err: errors.New("rate limited")}},
		{"prose reply", &llm.MockClient{Response: reply("Nothing notable here.")}},
		{"object reply", &llm.MockClient{Response: reply(`{"content": "User likes tea"}`)}},
		{"nil reply", &llm.MockClient{}},
		{"empty contents", &llm.MockClient{Response: reply(`[{"content": ""}, {"content": "   "}]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, db := testEngine(t, tt.client, config.MemoryConfig{})

			stored, err := e.ExtractAndStore(context.Background(), testUser, "User: hello there", SourceChat)
			require.NoError(t, err)
			assert.Empty(t, stored)
			assert.Equal(t, 0, countMemories(t, db, testUser))
		})
	}
}

func TestExtractAndStoreTimeout(t *testing.T) {
	e, db := testEngine(t, blockingClient{}, config.MemoryConfig{ExtractionTimeoutSeconds: 1})

	stored, err := e.ExtractAndStore(context.Background(), testUser, "User: hello there", SourceChat)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 0, countMemories(t, db, testUser))
}

func TestExtractAndStoreEmptyText(t *testing.T) {
	mock := &llm.MockClient{Response: reply(twoFacts)}
	e, _ := testEngine(t, mock, config.MemoryConfig{})

	stored, err := e.ExtractAndStore(context.Background(), testUser, "  \n ", SourceChat)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 0, mock.CallCount(), "model is not called for empty text")
}

func TestExtractAndStoreEnforcesBudget(t *testing.T) {
	mock := &llm.MockClient{Response: reply(twoFacts)}
	e, db := testEngine(t, mock, config.MemoryConfig{MaxMemoriesPerUser: 1})

	_, err := e.ExtractAndStore(context.Background(), testUser, "some conversation", SourceChat)
	require.NoError(t, err)
	assert.Equal(t, 1, countMemories(t, db, testUser))
}

func TestExtractAndStoreConcurrentSameFact(t *testing.T) {
	mock := &llm.MockClient{Response: reply(`[{"content": "User plays the cello in an orchestra"}]`)}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ExtractAndStore(context.Background(), testUser, "User: I play cello", SourceChat)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	memories, err := db.SelectMemories(store.MemoryQuery{UserID: testUser})
	require.NoError(t, err)
	require.Len(t, memories, 1, "concurrent extractions merge instead of duplicating")
	assert.Equal(t, 7, memories[0].AccessCount)
}

func TestRemember(t *testing.T) {
	e, db := testEngine(t, nil, config.MemoryConfig{})

	m, err := e.Remember(context.Background(), testUser, RememberRequest{
		Content: "User is allergic to penicillin",
		Pinned:  true,
	})
	require.NoError(t, err)

	got := mustGet(t, db, m.ID)
	assert.True(t, got.IsPinned)
	assert.Equal(t, SourceManual, got.Source)
	assert.Equal(t, TypeConstraint, got.MemoryType)
	assert.Equal(t, CategoryFact, got.Category)
}

func TestRememberMergesAndRejectsEmpty(t *testing.T) {
	e, db := testEngine(t, nil, config.MemoryConfig{})
	ctx := context.Background()

	_, err := e.Remember(ctx, testUser, RememberRequest{Content: "  "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	a, err := e.Remember(ctx, testUser, RememberRequest{Content: "User runs five kilometers daily"})
	require.NoError(t, err)
	b, err := e.Remember(ctx, testUser, RememberRequest{Content: "User runs ten kilometers daily", Source: SourceJournal})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, countMemories(t, db, testUser))
	assert.Equal(t, SourceJournal, mustGet(t, db, a.ID).Source)
}

func TestExtractAndStoreNumericStrings(t *testing.T) {
	mock := &llm.MockClient{Response: reply(`[{"content": "User is allergic to peanuts and shellfish", ` +
		`"importance_score": "0.9", "ttl_days": "90", "category": "personal_info"}]`)}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	stored, err := e.ExtractAndStore(context.Background(), testUser, "User: I'm allergic to peanuts and shellfish", SourceChat)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, countMemories(t, db, testUser))

	m := mustGet(t, db, stored[0].ID)
	assert.Equal(t, 90, m.TTLDays)
	assert.Equal(t, TypeConstraint, m.MemoryType)
	assert.Equal(t, TierHigh, TierFor(m.ImportanceScore))
}

func TestExtractAndStorePrunesWithoutCandidates(t *testing.T) {
	mock := &llm.MockClient{Response: reply("[]")}
	e, db := testEngine(t, mock, config.MemoryConfig{MaxMemoriesPerUser: 1})

	for _, c := range []string{"User owns a sailboat", "User likes jazz", "User is learning Greek"} {
		seed(t, db, store.Memory{Content: c, ImportanceScore: 0.5, DecayScore: 0.5})
	}

	stored, err := e.ExtractAndStore(context.Background(), testUser, "User: nothing new today", SourceChat)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 1, countMemories(t, db, testUser), "budget applies even when nothing was extracted")
}
