package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserJournal is a free-form entry written by the user.
type UserJournal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// AIJournal is the assistant's reflection on one chat exchange.
type AIJournal struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ConversationID  string    `json:"conversation_id"`
	Reflection      string    `json:"reflection"`
	Learnings       []string  `json:"learnings"`
	QuestionsRaised []string  `json:"questions_raised"`
	CreatedAt       time.Time `json:"created_at"`
}

// JournalQuery filters a user's journal entries. Every tag must be present.
type JournalQuery struct {
	UserID string
	Tags   []string
	Limit  int
	Offset int
}

const (
	userJournalColumns = `id, user_id, content, tags, created_at`
	aiJournalColumns   = `id, user_id, conversation_id, reflection, learnings, questions_raised, created_at`
)

// AddUserJournal records a user journal entry.
func (db *DB) AddUserJournal(j *UserJournal) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.Tags == nil {
		j.Tags = []string{}
	}
	_, err := db.Exec(`INSERT INTO user_journals (`+userJournalColumns+`) VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.Content, encodeList(j.Tags), j.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert user journal: %w", err)
	}
	return nil
}

// UserJournals returns a user's entries, newest first.
func (db *DB) UserJournals(q JournalQuery) ([]UserJournal, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + userJournalColumns + ` FROM user_journals WHERE user_id = ?`)
	args := []any{q.UserID}
	for _, tag := range q.Tags {
		b.WriteString(` AND EXISTS (SELECT 1 FROM json_each(user_journals.tags) WHERE value = ?)`)
		args = append(args, tag)
	}
	b.WriteString(` ORDER BY created_at DESC, rowid DESC`)
	args = appendPage(&b, args, q.Limit, q.Offset)

	return db.queryUserJournals(b.String(), args...)
}

// SearchUserJournals returns entries whose content contains query,
// case-insensitively, newest first.
func (db *DB) SearchUserJournals(userID, query string, limit int) ([]UserJournal, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + userJournalColumns + ` FROM user_journals
		WHERE user_id = ? AND instr(lower(content), lower(?)) > 0
		ORDER BY created_at DESC, rowid DESC`)
	args := appendPage(&b, []any{userID, query}, limit, 0)
	return db.queryUserJournals(b.String(), args...)
}

// GetUserJournal returns one of a user's entries, or ErrNotFound.
func (db *DB) GetUserJournal(id, userID string) (*UserJournal, error) {
	row := db.QueryRow(`SELECT `+userJournalColumns+` FROM user_journals WHERE id = ? AND user_id = ?`, id, userID)
	j, err := scanUserJournal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user journal: %w", err)
	}
	return j, nil
}

// UpdateUserJournal replaces an entry's content and, when tags is non-nil,
// its tags. Returns ErrNotFound if the user owns no such entry.
func (db *DB) UpdateUserJournal(id, userID, content string, tags []string) (*UserJournal, error) {
	query := `UPDATE user_journals SET content = ?`
	args := []any{content}
	if tags != nil {
		query += `, tags = ?`
		args = append(args, encodeList(tags))
	}
	query += ` WHERE id = ? AND user_id = ?`
	args = append(args, id, userID)

	result, err := db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("update user journal: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetUserJournal(id, userID)
}

// DeleteUserJournal removes an entry owned by userID. Returns false if nothing was deleted.
func (db *DB) DeleteUserJournal(id, userID string) (bool, error) {
	result, err := db.Exec("DELETE FROM user_journals WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete user journal %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// AddAIJournal records a reflection.
func (db *DB) AddAIJournal(j *AIJournal) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.Learnings == nil {
		j.Learnings = []string{}
	}
	if j.QuestionsRaised == nil {
		j.QuestionsRaised = []string{}
	}
	_, err := db.Exec(`INSERT INTO ai_journals (`+aiJournalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.ConversationID, j.Reflection,
		encodeList(j.Learnings), encodeList(j.QuestionsRaised), j.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert ai journal: %w", err)
	}
	return nil
}

// AIJournals returns a user's reflections, newest first.
func (db *DB) AIJournals(userID string, limit, offset int) ([]AIJournal, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + aiJournalColumns + ` FROM ai_journals WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`)
	args := appendPage(&b, []any{userID}, limit, offset)

	rows, err := db.Query(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("ai journals: %w", err)
	}
	defer rows.Close()

	var out []AIJournal
	for rows.Next() {
		j, err := scanAIJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ai journal: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// GetAIJournal returns one of a user's reflections, or ErrNotFound.
func (db *DB) GetAIJournal(id, userID string) (*AIJournal, error) {
	row := db.QueryRow(`SELECT `+aiJournalColumns+` FROM ai_journals WHERE id = ? AND user_id = ?`, id, userID)
	j, err := scanAIJournal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai journal: %w", err)
	}
	return j, nil
}

func (db *DB) queryUserJournals(query string, args ...any) ([]UserJournal, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("user journals: %w", err)
	}
	defer rows.Close()

	var out []UserJournal
	for rows.Next() {
		j, err := scanUserJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user journal: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// appendPage adds LIMIT/OFFSET clauses. A non-positive limit means no limit.
func appendPage(b *strings.Builder, args []any, limit, offset int) []any {
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(` LIMIT ?`)
	args = append(args, limit)
	if offset > 0 {
		b.WriteString(` OFFSET ?`)
		args = append(args, offset)
	}
	return args
}

func scanUserJournal(r rowScanner) (*UserJournal, error) {
	var j UserJournal
	var tags string
	var createdAt int64
	if err := r.Scan(&j.ID, &j.UserID, &j.Content, &tags, &createdAt); err != nil {
		return nil, err
	}
	j.Tags = decodeList(tags)
	j.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &j, nil
}

func scanAIJournal(r rowScanner) (*AIJournal, error) {
	var j AIJournal
	var learnings, questions string
	var createdAt int64
	if err := r.Scan(&j.ID, &j.UserID, &j.ConversationID, &j.Reflection, &learnings, &questions, &createdAt); err != nil {
		return nil, err
	}
	j.Learnings = decodeList(learnings)
	j.QuestionsRaised = decodeList(questions)
	j.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &j, nil
}

func encodeList(items []string) string {
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeList never returns nil so entries always serialize as arrays.
func decodeList(s string) []string {
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil || items == nil {
		return []string{}
	}
	return items
}
