package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Turn is one exchange in a conversation: the user's message and the reply.
type Turn struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Response       string    `json:"response"`
	MemoriesUsed   int       `json:"memories_used"`
	CreatedAt      time.Time `json:"created_at"`
}

// AddTurn records a conversation turn.
func (db *DB) AddTurn(t *Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, user_id, conversation_id, message, response, memories_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.ConversationID, t.Message, t.Response, t.MemoriesUsed, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit of the most recent turns of a conversation,
// oldest first.
func (db *DB) RecentTurns(userID, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, user_id, conversation_id, message, response, memories_used, created_at
		FROM (
			SELECT *, rowid AS rid FROM conversations
			WHERE user_id = ? AND conversation_id = ?
			ORDER BY created_at DESC, rid DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, rid ASC
	`, userID, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.ConversationID, &t.Message, &t.Response, &t.MemoriesUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ConversationTurns returns every turn for a user, oldest first, optionally
// restricted to one conversation.
func (db *DB) ConversationTurns(userID, conversationID string, limit int) ([]Turn, error) {
	query := `SELECT id, user_id, conversation_id, message, response, memories_used, created_at
		FROM conversations WHERE user_id = ?`
	args := []any{userID}
	if conversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, conversationID)
	}
	query += " ORDER BY created_at ASC, rowid ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.ConversationID, &t.Message, &t.Response, &t.MemoriesUsed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ConversationSummary describes one conversation in a user's chat list.
type ConversationSummary struct {
	ConversationID  string    `json:"conversation_id"`
	FirstMessage    string    `json:"first_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	MessageCount    int       `json:"message_count"`
}

// previewRunes bounds FirstMessage.
const previewRunes = 50

// Conversations lists a user's conversations, most recently active first.
func (db *DB) Conversations(userID string) ([]ConversationSummary, error) {
	rows, err := db.Query(`
		SELECT c.conversation_id, COUNT(*), MAX(c.created_at),
			(SELECT f.message FROM conversations f
			 WHERE f.user_id = c.user_id AND f.conversation_id = c.conversation_id
			 ORDER BY f.created_at ASC, f.rowid ASC LIMIT 1)
		FROM conversations c
		WHERE c.user_id = ?
		GROUP BY c.conversation_id
		ORDER BY MAX(c.created_at) DESC, c.conversation_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var last int64
		if err := rows.Scan(&s.ConversationID, &s.MessageCount, &last, &s.FirstMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		s.LastMessageTime = time.UnixMilli(last).UTC()
		s.FirstMessage = preview(s.FirstMessage)
		out = append(out, s)
	}
	return out, rows.Err()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
