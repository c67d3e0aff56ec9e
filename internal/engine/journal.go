package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
	"github.com/tymonhq/tymon/internal/transcript"
)

// reflectionContextTurns bounds how much earlier conversation a reflection sees.
const reflectionContextTurns = 5

// JournalRequest is a user journal entry to record.
type JournalRequest struct {
	UserID  string   `json:"user_id"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Journal records a user journal entry and then extracts memories from it
// with the journal source bonus. Extraction failures are logged; the entry is
// kept either way.
func (e *Engine) Journal(ctx context.Context, req JournalRequest) (*store.UserJournal, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if err := e.Store.EnsureUser(req.UserID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	j := &store.UserJournal{
		UserID:    req.UserID,
		Content:   content,
		Tags:      req.Tags,
		CreatedAt: e.now(),
	}
	if err := e.Store.AddUserJournal(j); err != nil {
		return nil, err
	}

	stored, err := e.ExtractAndStore(ctx, req.UserID, llm.JournalEntryPrefix+content, SourceJournal)
	if err != nil {
		log.Printf("journal: extract memories for %s: %v", req.UserID, err)
	} else if len(stored) > 0 {
		log.Printf("journal: %s yielded %d memories", j.ID, len(stored))
	}
	return j, nil
}

type reflection struct {
	Reflection      string   `json:"reflection"`
	Learnings       []string `json:"learnings"`
	QuestionsRaised []string `json:"questions_raised"`
}

// reflect asks the model to reflect on a finished exchange and records the
// result as an AI journal entry.
func (e *Engine) reflect(ctx context.Context, userID, convID string, history []transcript.Turn, message, reply string) (*store.AIJournal, error) {
	if len(history) > reflectionContextTurns {
		history = history[len(history)-reflectionContextTurns:]
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.Cfg.ExtractionTimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := e.LLM.Complete(ctx, llm.ReflectionPrompt(history, message, reply))
	if err != nil {
		return nil, fmt.Errorf("generate reflection: %w", err)
	}
	if resp == nil {
		return nil, errEmptyResponse
	}

	obj, err := llm.ExtractJSONObject(resp.Content)
	if err != nil {
		return nil, err
	}
	var r reflection
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("unmarshal reflection: %w", err)
	}
	if strings.TrimSpace(r.Reflection) == "" {
		return nil, fmt.Errorf("reflection is empty")
	}

	j := &store.AIJournal{
		UserID:          userID,
		ConversationID:  convID,
		Reflection:      strings.TrimSpace(r.Reflection),
		Learnings:       r.Learnings,
		QuestionsRaised: r.QuestionsRaised,
		CreatedAt:       e.now(),
	}
	if err := e.Store.AddAIJournal(j); err != nil {
		return nil, err
	}
	return j, nil
}
