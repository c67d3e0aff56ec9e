package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymonhq/tymon/internal/config"
	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

// flakyStore fails selected operations and passes the rest through.
type flakyStore struct {
	*store.DB
	selectErr error
	turnsErr  error
	addErr    error
	aiErr     error
}

func (s *flakyStore) SelectMemories(q store.MemoryQuery) ([]store.Memory, error) {
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return s.DB.SelectMemories(q)
}

func (s *flakyStore) RecentTurns(userID, conversationID string, limit int) ([]store.Turn, error) {
	if s.turnsErr != nil {
		return nil, s.turnsErr
	}
	return s.DB.RecentTurns(userID, conversationID, limit)
}

func (s *flakyStore) AddTurn(t *store.Turn) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.DB.AddTurn(t)
}

func (s *flakyStore) AddAIJournal(j *store.AIJournal) error {
	if s.aiErr != nil {
		return s.aiErr
	}
	return s.DB.AddAIJournal(j)
}

func TestChat(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.Response{
		reply("  Pour-over is a lovely way to start the day.  "),
		reply(`[{"content": "User wants to try pour-over coffee", "importance_score": 0.6}]`),
		reply("A V60 and a gooseneck kettle will do."),
		reply("[]"),
	}}
	e, db := testEngine(t, mock, config.MemoryConfig{})
	ctx := context.Background()

	first, err := e.Chat(ctx, ChatRequest{UserID: testUser, Message: "I want to try pour-over"})
	require.NoError(t, err)
	assert.Equal(t, "Pour-over is a lovely way to start the day.", first.Response)
	assert.NotEmpty(t, first.ConversationID)
	assert.Equal(t, 0, first.MemoriesUsed)
	assert.Equal(t, testNow, first.Timestamp)

	require.Equal(t, 2, mock.CallCount(), "reply then extraction")
	assert.Contains(t, mock.Calls[0], "=== Current Message ===\nUser: I want to try pour-over")
	assert.NotContains(t, mock.Calls[0], "=== Relevant Memories ===")
	assert.Contains(t, mock.Calls[1], "Pour-over is a lovely way")
	assert.Equal(t, 1, countMemories(t, db, testUser))

	second, err := e.Chat(ctx, ChatRequest{UserID: testUser, ConversationID: first.ConversationID, Message: "which coffee gear should we buy"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, 1, second.MemoriesUsed)

	prompt := mock.Calls[2]
	assert.Contains(t, prompt, "=== Relevant Memories ===\n1. User wants to try pour-over coffee")
	assert.Contains(t, prompt, "=== Conversation History ===\nUser: I want to try pour-over\nTymon: Pour-over is a lovely way to start the day.")

	turns, err := db.RecentTurns(testUser, first.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "which coffee gear should we buy", turns[1].Message)
	assert.Equal(t, 1, turns[1].MemoriesUsed)
}

func TestChatHistoryIsPerConversation(t *testing.T) {
	mock := &llm.MockClient{Response: reply("ok")}
	e, _ := testEngine(t, mock, config.MemoryConfig{})
	ctx := context.Background()

	_, err := e.Chat(ctx, ChatRequest{UserID: testUser, ConversationID: "conv-a", Message: "remember the blue door"})
	require.NoError(t, err)
	_, err = e.Chat(ctx, ChatRequest{UserID: testUser, ConversationID: "conv-b", Message: "hello"})
	require.NoError(t, err)

	last := mock.Calls[len(mock.Calls)-2]
	assert.NotContains(t, last, "blue door")
}

func TestChatRejects(t *testing.T) {
	ctx := context.Background()

	e, _ := testEngine(t, nil, config.MemoryConfig{})
	_, err := e.Chat(ctx, ChatRequest{UserID: testUser, Message: "hi"})
	assert.ErrorIs(t, err, ErrNoLLM)

	mock := &llm.MockClient{Response: reply("ok")}
	e, _ = testEngine(t, mock, config.MemoryConfig{})
	_, err = e.Chat(ctx, ChatRequest{UserID: testUser, Message: "  "})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = e.Chat(ctx, ChatRequest{Message: "hi"})
	assert.Error(t, err, "user creation failure is fatal")
	assert.Equal(t, 0, mock.CallCount())
}

func TestChatModelFailure(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("overloaded")}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	_, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, ConversationID: "c1", Message: "hi"})
	require.Error(t, err)

	turns, err := db.RecentTurns(testUser, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns, "nothing is recorded without a reply")
}

func TestChatDegradesWithoutMemories(t *testing.T) {
	db := testDB(t)
	broken := errors.New("disk on fire")
	fs := &flakyStore{DB: db, selectErr: broken, turnsErr: broken}
	seed(t, db, store.Memory{Content: "User likes hiking", ImportanceScore: 0.8})

	mock := &llm.MockClient{Responses: []*llm.Response{
		reply("Let's talk hiking."),
		reply(`[{"content": "User plans a hiking trip to Norway"}]`),
	}}
	e := New(fs, mock, config.MemoryConfig{})
	e.now = func() time.Time { return testNow }

	res, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, ConversationID: "c1", Message: "hiking plans"})
	require.NoError(t, err)
	assert.Equal(t, "Let's talk hiking.", res.Response)
	assert.Equal(t, 0, res.MemoriesUsed)
	assert.NotContains(t, mock.Calls[0], "=== Relevant Memories ===")

	turns, err := db.RecentTurns(testUser, "c1", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 1, "turn is still recorded")
	assert.Equal(t, 1, countMemories(t, db, testUser), "extraction failure leaves the store untouched")
}

func TestChatSurvivesTurnWriteFailure(t *testing.T) {
	db := testDB(t)
	fs := &flakyStore{DB: db, addErr: errors.New("read-only")}

	mock := &llm.MockClient{Responses: []*llm.Response{reply("Hi!"), reply("[]")}}
	e := New(fs, mock, config.MemoryConfig{})

	res, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", res.Response)
}

func TestChatNilModelResponse(t *testing.T) {
	e, db := testEngine(t, &llm.MockClient{}, config.MemoryConfig{})

	_, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, ConversationID: "c1", Message: "hi"})
	require.Error(t, err)

	turns, err := db.RecentTurns(testUser, "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestChatWritesReflection(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.Response{
		reply("Have you thought about which day you'll leave?"),
		reply("[]"),
		reply("```json\n{\"reflection\": \"Asked a clarifying question about the trip.\", " +
			"\"learnings\": [\"User is planning a trip\"], \"questions_raised\": [\"Departure day\"]}\n```"),
	}}
	e, db := testEngine(t, mock, config.MemoryConfig{ReflectAfterChat: true})

	res, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, ConversationID: "c1", Message: "I'm going to Crete"})
	require.NoError(t, err)

	require.Equal(t, 3, mock.CallCount(), "reply, extraction, reflection")
	assert.Contains(t, mock.Calls[2], "User: I'm going to Crete\nTymon: Have you thought about which day you'll leave?")

	journals, err := db.AIJournals(testUser, 10, 0)
	require.NoError(t, err)
	require.Len(t, journals, 1)
	assert.Equal(t, res.ConversationID, journals[0].ConversationID)
	assert.Equal(t, "Asked a clarifying question about the trip.", journals[0].Reflection)
	assert.Equal(t, []string{"User is planning a trip"}, journals[0].Learnings)
	assert.Equal(t, []string{"Departure day"}, journals[0].QuestionsRaised)
	assert.True(t, journals[0].CreatedAt.Equal(testNow))
}

func TestChatSurvivesReflectionFailure(t *testing.T) {
	tests := []struct {
		name       string
		reflection *llm.Response
		aiErr      error
	}{
		{"no response", nil, nil},
		{"prose", reply("That went well, I think."), nil},
		{"empty reflection", reply(`{"reflection": "  "}`), nil},
		{"store failure", reply(`{"reflection": "Fine."}`), errors.New("disk full")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			fs := &flakyStore{DB: db, aiErr: tt.aiErr}
			mock := &llm.MockClient{Responses: []*llm.Response{reply("Sure."), reply("[]"), tt.reflection}}
			e := New(fs, mock, config.MemoryConfig{ReflectAfterChat: true})

			res, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, Message: "hello"})
			require.NoError(t, err)
			assert.Equal(t, "Sure.", res.Response)
			assert.Equal(t, 3, mock.CallCount())

			journals, err := db.AIJournals(testUser, 10, 0)
			require.NoError(t, err)
			assert.Empty(t, journals)
		})
	}
}

func TestChatReflectionFollowsConfig(t *testing.T) {
	mock := &llm.MockClient{Response: reply("ok")}
	e, db := testEngine(t, mock, config.MemoryConfig{})

	_, err := e.Chat(context.Background(), ChatRequest{UserID: testUser, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.CallCount())

	journals, err := db.AIJournals(testUser, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, journals)
}
