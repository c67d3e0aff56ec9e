package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is a durable fact about a user.
type Memory struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Content         string    `json:"content"`
	ImportanceScore float64   `json:"importance_score"`
	Category        string    `json:"category"`
	MemoryType      string    `json:"memory_type"`
	DecayScore      float64   `json:"decay_score"`
	Stability       float64   `json:"stability"`
	TTLDays         int       `json:"ttl_days,omitempty"` // 0 = no TTL
	IsPinned        bool      `json:"is_pinned"`
	AccessCount     int       `json:"access_count"`
	LastAccessed    time.Time `json:"last_accessed"`
	LastUsedInChat  time.Time `json:"last_used_in_chat"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// EffectiveScore is the decay score when one has been computed, else the raw importance.
func (m Memory) EffectiveScore() float64 {
	if m.DecayScore > 0 {
		return m.DecayScore
	}
	return m.ImportanceScore
}

// Order is a single ORDER BY term for SelectMemories.
type Order struct {
	Column string
	Desc   bool
}

// sortableColumns whitelists the columns SelectMemories may order by.
var sortableColumns = map[string]bool{
	"importance_score": true,
	"last_accessed":    true,
	"created_at":       true,
	"decay_score":      true,
}

// MemoryQuery filters SelectMemories. UserID is required; zero values of the
// other fields mean "no filter".
type MemoryQuery struct {
	UserID        string
	Pinned        *bool
	MinImportance float64
	CreatedAfter  time.Time
	CreatedBefore time.Time
	OrderBy       []Order
	Limit         int
}

// MemoryUpdate is a partial update. Nil fields are left untouched.
// AccessDelta is added to access_count in SQL so concurrent increments are not lost.
type MemoryUpdate struct {
	ImportanceScore *float64
	DecayScore      *float64
	Stability       *float64
	TTLDays         *int
	Category        *string
	MemoryType      *string
	Source          *string
	IsPinned        *bool
	AccessDelta     int
	LastAccessed    *time.Time
	LastUsedInChat  *time.Time
}

const memoryColumns = `id, user_id, content, importance_score, category, memory_type,
	decay_score, stability, ttl_days, is_pinned, access_count, last_accessed,
	last_used_in_chat, source, created_at`

// InsertMemory stores a new memory. An empty ID is filled with a UUID; a zero
// CreatedAt is set to now. Scores are clamped to [0,1] and the TTL to [7,1825].
//
// A key conflict on a generated ID is retried once with a fresh UUID. A conflict
// on a caller-supplied ID is treated as success if that row exists for the same user.
func (db *DB) InsertMemory(m *Memory) error {
	generated := m.ID == ""
	if generated {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.ImportanceScore = clampUnit(m.ImportanceScore)
	m.DecayScore = clampUnit(m.DecayScore)
	m.Stability = clampUnit(m.Stability)
	if m.TTLDays != 0 {
		m.TTLDays = clampTTL(m.TTLDays)
	}
	if m.Category == "" {
		m.Category = "other"
	}
	if m.MemoryType == "" {
		m.MemoryType = "fact"
	}
	if m.Source == "" {
		m.Source = "chat"
	}

	err := db.insertMemory(m)
	if err == nil || !isUniqueViolation(err) {
		if err != nil {
			return fmt.Errorf("insert memory: %w", err)
		}
		return nil
	}

	if generated {
		m.ID = uuid.NewString()
		if err := db.insertMemory(m); err != nil {
			return fmt.Errorf("insert memory (retry): %w", err)
		}
		return nil
	}

	existing, getErr := db.GetMemory(m.ID)
	if getErr == nil && existing.UserID == m.UserID {
		*m = *existing
		return nil
	}
	return fmt.Errorf("insert memory: %w", err)
}

func (db *DB) insertMemory(m *Memory) error {
	var ttl any
	if m.TTLDays > 0 {
		ttl = m.TTLDays
	}
	_, err := db.Exec(`
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Content, m.ImportanceScore, m.Category, m.MemoryType,
		m.DecayScore, m.Stability, ttl, boolInt(m.IsPinned), m.AccessCount,
		toMillis(m.LastAccessed), toMillis(m.LastUsedInChat), m.Source, m.CreatedAt.UnixMilli())
	return err
}

// GetMemory returns a memory by ID, or ErrNotFound.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// SelectMemories returns a user's memories matching q.
func (db *DB) SelectMemories(q MemoryQuery) ([]Memory, error) {
	if q.UserID == "" {
		return nil, fmt.Errorf("select memories: user id required")
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + memoryColumns + ` FROM memories WHERE user_id = ?`)
	args := []any{q.UserID}

	if q.Pinned != nil {
		b.WriteString(` AND is_pinned = ?`)
		args = append(args, boolInt(*q.Pinned))
	}
	if q.MinImportance > 0 {
		b.WriteString(` AND importance_score >= ?`)
		args = append(args, q.MinImportance)
	}
	if !q.CreatedAfter.IsZero() {
		b.WriteString(` AND created_at > ?`)
		args = append(args, q.CreatedAfter.UnixMilli())
	}
	if !q.CreatedBefore.IsZero() {
		b.WriteString(` AND created_at < ?`)
		args = append(args, q.CreatedBefore.UnixMilli())
	}

	if len(q.OrderBy) > 0 {
		terms := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			if !sortableColumns[o.Column] {
				return nil, fmt.Errorf("select memories: cannot order by %q", o.Column)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			// NULL timestamps sort as oldest in both directions.
			if o.Column == "last_accessed" {
				terms = append(terms, fmt.Sprintf("COALESCE(last_accessed, 0) %s", dir))
			} else {
				terms = append(terms, o.Column+" "+dir)
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", ") + ", rowid ASC")
	} else {
		b.WriteString(" ORDER BY rowid ASC")
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := db.Query(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateMemory applies a partial update and returns the updated record.
func (db *DB) UpdateMemory(id string, u MemoryUpdate) (*Memory, error) {
	var sets []string
	var args []any

	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.ImportanceScore != nil {
		set("importance_score", clampUnit(*u.ImportanceScore))
	}
	if u.DecayScore != nil {
		set("decay_score", clampUnit(*u.DecayScore))
	}
	if u.Stability != nil {
		set("stability", clampUnit(*u.Stability))
	}
	if u.TTLDays != nil {
		if *u.TTLDays > 0 {
			set("ttl_days", clampTTL(*u.TTLDays))
		} else {
			set("ttl_days", nil)
		}
	}
	if u.Category != nil {
		set("category", *u.Category)
	}
	if u.MemoryType != nil {
		set("memory_type", *u.MemoryType)
	}
	if u.Source != nil {
		set("source", *u.Source)
	}
	if u.IsPinned != nil {
		set("is_pinned", boolInt(*u.IsPinned))
	}
	if u.AccessDelta != 0 {
		sets = append(sets, "access_count = access_count + ?")
		args = append(args, u.AccessDelta)
	}
	if u.LastAccessed != nil {
		set("last_accessed", toMillis(*u.LastAccessed))
	}
	if u.LastUsedInChat != nil {
		set("last_used_in_chat", toMillis(*u.LastUsedInChat))
	}

	if len(sets) == 0 {
		return db.GetMemory(id)
	}

	args = append(args, id)
	result, err := db.Exec(`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetMemory(id)
}

// DeleteMemory removes a memory owned by userID. Returns false if nothing was deleted.
func (db *DB) DeleteMemory(id, userID string) (bool, error) {
	result, err := db.Exec("DELETE FROM memories WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete memory %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// CountMemories returns the number of memories stored for a user.
func (db *DB) CountMemories(userID string) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(r rowScanner) (*Memory, error) {
	var m Memory
	var ttl sql.NullInt64
	var pinned int
	var lastAccessed, lastUsed sql.NullInt64
	var createdAt int64
	if err := r.Scan(&m.ID, &m.UserID, &m.Content, &m.ImportanceScore, &m.Category, &m.MemoryType,
		&m.DecayScore, &m.Stability, &ttl, &pinned, &m.AccessCount, &lastAccessed,
		&lastUsed, &m.Source, &createdAt); err != nil {
		return nil, err
	}
	if ttl.Valid {
		m.TTLDays = int(ttl.Int64)
	}
	m.IsPinned = pinned != 0
	m.LastAccessed = fromMillis(lastAccessed)
	m.LastUsedInChat = fromMillis(lastUsed)
	m.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &m, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clampUnit(v float64) float64 {
	if v != v || v < 0 { // NaN or negative
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampTTL(days int) int {
	if days < 7 {
		return 7
	}
	if days > 1825 {
		return 1825
	}
	return days
}
