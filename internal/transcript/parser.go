package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Roles recognised in transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// line is a single JSONL record: {"role": "...", "content": ...}.
type line struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"` // string or []contentItem
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseFile reads a JSONL transcript file and returns its turns.
func ParseFile(path string) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads JSONL turns from r. Malformed lines and lines with an unknown
// role or no text are skipped.
func Parse(r io.Reader) ([]Turn, error) {
	var turns []Turn
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line buffer

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if t, ok := parseLine(raw); ok {
			turns = append(turns, t)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return turns, nil
}

// ParseLines parses transcript content from a string.
func ParseLines(content string) []Turn {
	turns, _ := Parse(strings.NewReader(content))
	return turns
}

func parseLine(raw []byte) (Turn, bool) {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return Turn{}, false
	}

	role := normalizeRole(l.Role)
	if role == "" {
		return Turn{}, false
	}

	text := strings.TrimSpace(extractText(l.Content))
	if text == "" {
		return Turn{}, false
	}
	return Turn{Role: role, Text: text}, true
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return RoleUser
	case "assistant", "ai", "tymon":
		return RoleAssistant
	}
	return ""
}

// extractText handles the polymorphic content field.
// It may be a plain string or an array of content items.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []contentItem
	if err := json.Unmarshal(raw, &items); err == nil {
		var texts []string
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return strings.Join(texts, "\n")
	}

	return ""
}

// CountUserMessages returns the number of user turns.
func CountUserMessages(turns []Turn) int {
	count := 0
	for _, t := range turns {
		if t.Role == RoleUser {
			count++
		}
	}
	return count
}
