package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tymonhq/tymon/internal/llm"
	"github.com/tymonhq/tymon/internal/store"
)

const (
	defaultImportance = 0.5
	defaultStability  = 0.5
)

// Candidate is one memory proposed by the extraction model. Optional fields
// are pointers so "absent" and "zero" stay distinguishable.
type Candidate struct {
	Content         string   `json:"content"`
	ImportanceScore *float64 `json:"importance_score,omitempty"`
	Category        string   `json:"category,omitempty"`
	MemoryType      string   `json:"memory_type,omitempty"`
	Stability       *float64 `json:"stability,omitempty"`
	TTLDays         *float64 `json:"ttl_days,omitempty"`
}

// flexFloat decodes a number or a numeric string. Anything else, including
// NaN and infinities, decodes as absent so the field's default applies.
type flexFloat struct {
	val float64
	ok  bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	*f = flexFloat{}
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = flexFloat{val: v, ok: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.val
	return &v
}

// wireCandidate is a candidate as the model writes it.
type wireCandidate struct {
	Content         string    `json:"content"`
	ImportanceScore flexFloat `json:"importance_score"`
	Category        string    `json:"category"`
	MemoryType      string    `json:"memory_type"`
	Stability       flexFloat `json:"stability"`
	TTLDays         flexFloat `json:"ttl_days"`
}

// parseCandidates decodes the model's reply into candidates. Each element is
// decoded on its own so one malformed entry does not discard the rest.
func parseCandidates(content string) ([]Candidate, error) {
	arr, err := llm.ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(raw))
	for i, r := range raw {
		var w wireCandidate
		if err := json.Unmarshal(r, &w); err != nil {
			log.Printf("extraction: skipping candidate %d: %v", i, err)
			continue
		}
		candidates = append(candidates, Candidate{
			Content:         w.Content,
			ImportanceScore: w.ImportanceScore.ptr(),
			Category:        w.Category,
			MemoryType:      w.MemoryType,
			Stability:       w.Stability.ptr(),
			TTLDays:         w.TTLDays.ptr(),
		})
	}
	return candidates, nil
}

// toMemory validates a candidate and scores it into a new, unsaved memory.
// ok is false when the candidate has no content.
func (c Candidate) toMemory(userID, source string, now time.Time) (store.Memory, bool) {
	content := strings.TrimSpace(c.Content)
	if content == "" {
		return store.Memory{}, false
	}

	raw := defaultImportance
	if c.ImportanceScore != nil {
		raw = *c.ImportanceScore
	}
	raw = clampUnit(raw)

	stability := defaultStability
	if c.Stability != nil {
		stability = clampUnit(*c.Stability)
	}

	category := NormalizeCategory(c.Category, content)
	memoryType := NormalizeMemoryType(c.MemoryType, content, category)
	importance := AdjustImportance(raw, memoryType, category, stability, content, source)

	var ttl int
	if c.TTLDays != nil && *c.TTLDays > 0 && !math.IsInf(*c.TTLDays, 0) {
		ttl = ClampTTL(int(math.Min(*c.TTLDays, MaxTTLDays)))
	} else {
		ttl = TTLDays(importance, memoryType, stability)
	}

	now = now.UTC()
	return store.Memory{
		UserID:          userID,
		Content:         content,
		ImportanceScore: importance,
		Category:        category,
		MemoryType:      memoryType,
		DecayScore:      DecayScore(importance, now, memoryType, stability, now),
		Stability:       stability,
		TTLDays:         ttl,
		AccessCount:     0,
		LastAccessed:    now,
		Source:          source,
		CreatedAt:       now,
	}, true
}
