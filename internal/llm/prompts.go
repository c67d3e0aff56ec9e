package llm

import (
	"fmt"
	"strings"

	"github.com/tymonhq/tymon/internal/transcript"
)

// SystemPrompt is Tymon's persona, prepended to every chat prompt.
const SystemPrompt = `You are Tymon, a thoughtful conversational companion with a long-term memory.

You remember what the user has told you in earlier conversations and use it naturally,
without reciting it back. You are warm but honest: you ask clarifying questions when
something is ambiguous and you push back gently when you disagree.

Rules:
- Use remembered facts only when they are relevant to the current message
- Never invent memories; if you are unsure, ask
- Respect constraints the user has stated (allergies, things to avoid, boundaries)
- Keep answers conversational and concise unless asked for detail`

// ExtractionPrompt generates the prompt for memory extraction from a conversation or journal.
func ExtractionPrompt(conversation string) string {
	return fmt.Sprintf(`Analyze the following conversation and extract important information about the user that should be remembered long-term.

Conversation:
%s

For each important piece of information, provide:
1. content: the memory text, written as a standalone fact about the user
2. importance_score: 0.0 to 1.0, where 1.0 is very important
3. category: one of personal_info, preference, fact, relationship, goal, other
4. memory_type (optional): one of constraint, goal, relationship, preference, fact
   Use constraint for allergies, restrictions and things the user cannot or will not do.
5. stability (optional): 0.0 to 1.0, how unlikely the fact is to change
6. ttl_days (optional): how many days the fact stays relevant

Return ONLY a JSON array, no other text:
[
  {
    "content": "memory text",
    "importance_score": 0.8,
    "category": "preference",
    "memory_type": "preference",
    "stability": 0.5
  }
]

Only extract truly important information. Skip greetings, small talk, or trivial details.
If nothing important, return empty array: []`, conversation)
}

// ChatPrompt builds the full generation prompt: persona, relevant memories,
// recent history and the current message.
func ChatPrompt(memories []string, history []transcript.Turn, message string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)

	if len(memories) > 0 {
		b.WriteString("\n\n=== Relevant Memories ===\n")
		for i, m := range memories {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m)
		}
	}

	if len(history) > 0 {
		b.WriteString("\n\n=== Conversation History ===\n")
		for _, t := range history {
			label := "User"
			if t.Role == transcript.RoleAssistant {
				label = "Tymon"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, t.Text)
		}
	}

	fmt.Fprintf(&b, "\n\n=== Current Message ===\nUser: %s\n\nTymon:", message)
	return b.String()
}

// JournalEntryPrefix introduces a user journal entry handed to extraction.
const JournalEntryPrefix = "User journal entry:\n"

// ReflectionPrompt asks the model to reflect on the exchange it just had.
// recent holds the conversation leading up to it.
func ReflectionPrompt(recent []transcript.Turn, message, reply string) string {
	var b strings.Builder
	for _, t := range recent {
		label := "User"
		if t.Role == transcript.RoleAssistant {
			label = "Tymon"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Text)
	}
	fmt.Fprintf(&b, "User: %s\nTymon: %s", message, reply)

	return fmt.Sprintf(`You are Tymon. After this conversation, reflect on it.

Latest exchange:
User: %s
Tymon: %s

Full conversation context:
%s

Return ONLY a JSON object, no other text:
{
  "reflection": "your honest reflection: what went well, what could be improved",
  "learnings": ["key learning"],
  "questions_raised": ["question you asked"]
}

Be honest and thoughtful. If you challenged the user or asked clarifying questions, mention that.`, message, reply, b.String())
}

// ExtractJSONArray returns the outermost JSON array in an LLM response,
// tolerating markdown code fences and surrounding prose.
func ExtractJSONArray(content string) (string, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf("no JSON array found in response")
	}
	return content[start : end+1], nil
}

// ExtractJSONObject returns the outermost JSON object in an LLM response,
// tolerating markdown code fences and surrounding prose.
func ExtractJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return content[start : end+1], nil
}
