package engine

import (
	"strings"

	"github.com/tymonhq/tymon/internal/store"
)

// minOverlap is the fewest shared words that count as "the same fact".
const minOverlap = 2

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// FindSimilar returns the existing memory sharing the most distinct words with
// content, or nil if none shares at least two. Ties go to the earliest
// candidate, so callers should pass memories in relevance order.
// Content with fewer than two distinct words is never matched.
func FindSimilar(content string, existing []store.Memory) *store.Memory {
	words := wordSet(content)
	if len(words) < minOverlap {
		return nil
	}

	var best *store.Memory
	bestOverlap := 0
	for i := range existing {
		overlap := 0
		for w := range wordSet(existing[i].Content) {
			if _, ok := words[w]; ok {
				overlap++
			}
		}
		if overlap > bestOverlap && overlap >= minOverlap {
			bestOverlap = overlap
			best = &existing[i]
		}
	}
	return best
}
