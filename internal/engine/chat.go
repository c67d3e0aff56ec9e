package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
	"github.com/tymonhq/tymon/internal/transcript"
)

// ChatRequest is one user message.
type ChatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResult is Tymon's reply plus what went into it.
type ChatResult struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversation_id"`
	MemoriesUsed   int       `json:"memories_used"`
	Timestamp      time.Time `json:"timestamp"`
}

// Chat answers a message using the user's relevant memories and recent
// history, then records the turn and extracts new memories from it.
//
// Only user creation and the model call are fatal. Memory lookup, history,
// turn persistence, extraction and reflection failures are logged and the
// reply still goes out.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyContent
	}
	if e.LLM == nil {
		return nil, ErrNoLLM
	}

	if err := e.Store.EnsureUser(req.UserID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	memories, err := e.Relevant(ctx, req.UserID, message, e.Cfg.RelevantLimit)
	if err != nil {
		log.Printf("chat: relevant memories for %s: %v", req.UserID, err)
		memories = nil
	}
	facts := make([]string, len(memories))
	for i, m := range memories {
		facts[i] = m.Content
	}

	var history []transcript.Turn
	if e.Cfg.HistoryTurns > 0 {
		turns, err := e.Store.RecentTurns(req.UserID, convID, e.Cfg.HistoryTurns)
		if err != nil {
			log.Printf("chat: history for %s/%s: %v", req.UserID, convID, err)
		}
		for _, t := range turns {
			history = append(history,
				transcript.Turn{Role: transcript.RoleUser, Text: t.Message},
				transcript.Turn{Role: transcript.RoleAssistant, Text: t.Response},
			)
		}
	}

	resp, err := e.LLM.Complete(ctx, llm.ChatPrompt(facts, history, message))
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("generate response: %w", errEmptyResponse)
	}
	reply := strings.TrimSpace(resp.Content)

	now := e.now()
	if err := e.Store.AddTurn(&store.Turn{
		UserID:         req.UserID,
		ConversationID: convID,
		Message:        message,
		Response:       reply,
		MemoriesUsed:   len(memories),
		CreatedAt:      now,
	}); err != nil {
		log.Printf("chat: save turn for %s: %v", req.UserID, err)
	}

	if _, err := e.ExtractAndStore(ctx, req.UserID, transcript.Exchange(message, reply), SourceChat); err != nil {
		log.Printf("chat: extract memories for %s: %v", req.UserID, err)
	}

	if e.Cfg.ReflectAfterChat {
		if _, err := e.reflect(ctx, req.UserID, convID, history, message, reply); err != nil {
			log.Printf("chat: reflection for %s/%s: %v", req.UserID, convID, err)
		}
	}

	return &ChatResult{
		Response:       reply,
		ConversationID: convID,
		MemoriesUsed:   len(memories),
		Timestamp:      now,
	}, nil
}
