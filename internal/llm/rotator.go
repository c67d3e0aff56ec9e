package llm

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// ErrRateLimited marks a provider refusal due to rate or quota limits.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err is a provider's 429 response.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode == http.StatusTooManyRequests
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// SplitKeys parses a comma-separated API key list, dropping blanks.
func SplitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Rotator spreads calls over several clients of one provider, usually one per
// API key. A rate-limited call moves to the next client and is retried; each
// client is tried at most once per call. Other errors are returned as is.
type Rotator struct {
	clients []Client

	mu      sync.Mutex
	current int
}

// NewRotator creates a Rotator over clients, starting with the first.
func NewRotator(clients ...Client) *Rotator {
	return &Rotator{clients: clients}
}

// Complete implements Client.
func (r *Rotator) Complete(ctx context.Context, prompt string) (*Response, error) {
	if len(r.clients) == 0 {
		return nil, errors.New("rotator: no clients")
	}

	var lastErr error
	for range r.clients {
		idx := r.active()
		resp, err := r.clients[idx].Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if !IsRateLimited(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		next := r.advance(idx)
		log.Printf("llm: key %d rate limited, rotating to key %d", idx, next)
	}
	return nil, lastErr
}

func (r *Rotator) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// advance moves past idx unless a concurrent call already did.
func (r *Rotator) advance(idx int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == idx {
		r.current = (idx + 1) % len(r.clients)
	}
	return r.current
}

func rotating(clients []Client) Client {
	if len(clients) == 1 {
		return clients[0]
	}
	return NewRotator(clients...)
}
