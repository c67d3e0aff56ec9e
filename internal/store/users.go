package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DemoUserID is the fixed identifier used by single-user deployments.
const DemoUserID = "00000000-0000-0000-0000-000000000000"

// User owns memories and conversations.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// usernameFor derives a stable username from a user ID.
func usernameFor(userID string) string {
	if userID == DemoUserID {
		return "demo_user"
	}
	return "user_" + strings.ReplaceAll(userID, "-", "")
}

// EnsureUser creates the user row if it does not exist. It is idempotent and
// safe to call before every operation.
//
// A username collision with a different user is retried once with a
// timestamp-suffixed username. A primary key conflict from a concurrent
// creation of the same user counts as success.
func (db *DB) EnsureUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("ensure user: empty user id")
	}

	exists, err := db.userExists(userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := time.Now().UTC()
	username := usernameFor(userID)
	err = db.insertUser(userID, username, now)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("insert user: %w", err)
	}

	if exists, _ := db.userExists(userID); exists {
		return nil
	}

	username = fmt.Sprintf("%s_%d", username, now.UnixMilli())
	if err := db.insertUser(userID, username, now); err != nil {
		if exists, _ := db.userExists(userID); exists {
			return nil
		}
		return fmt.Errorf("insert user (retry): %w", err)
	}
	return nil
}

// GetUser returns a user by ID, or nil if not found.
func (db *DB) GetUser(userID string) (*User, error) {
	var u User
	var createdAt int64
	err := db.QueryRow("SELECT id, username, created_at FROM users WHERE id = ?", userID).
		Scan(&u.ID, &u.Username, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

func (db *DB) userExists(userID string) (bool, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", userID).Scan(&count); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}

func (db *DB) insertUser(id, username string, createdAt time.Time) error {
	_, err := db.Exec("INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)",
		id, username, createdAt.UnixMilli())
	return err
}

// UserIDs returns every user that owns at least one memory.
func (db *DB) UserIDs() ([]string, error) {
	rows, err := db.Query("SELECT DISTINCT user_id FROM memories ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list memory owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
