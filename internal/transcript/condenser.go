package transcript

import (
	"strings"
)

const (
	firstLastAssistantMax = 1000
	midAssistantMax       = 200
)

// Condense renders turns as labelled lines for memory extraction.
// - every user message in full
// - first and last assistant message up to 1000 chars
// - other assistant messages up to 200 chars + "..."
// Turns keep their original order.
func Condense(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	assistantTotal := 0
	for _, t := range turns {
		if t.Role == RoleAssistant {
			assistantTotal++
		}
	}

	var b strings.Builder
	seen := 0
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			b.WriteString("User: ")
			b.WriteString(t.Text)
		case RoleAssistant:
			limit := midAssistantMax
			if seen == 0 || seen == assistantTotal-1 {
				limit = firstLastAssistantMax
			}
			seen++
			b.WriteString("Tymon: ")
			b.WriteString(truncate(t.Text, limit))
		default:
			continue
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

// Exchange is shorthand for condensing a single message/reply pair.
func Exchange(message, response string) string {
	return Condense([]Turn{
		{Role: RoleUser, Text: message},
		{Role: RoleAssistant, Text: response},
	})
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
