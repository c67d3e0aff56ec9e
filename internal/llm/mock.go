package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for the LLM Client interface.
// Responses, when set, are returned in order before falling back to Response.
type MockClient struct {
	Response  *Response
	Responses []*Response
	Err       error
	Calls     []string // records prompts sent

	mu sync.Mutex
}

// Complete records the call and returns the mock response.
// It honours context cancellation so timeout paths can be exercised.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, prompt)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) > 0 {
		r := m.Responses[0]
		m.Responses = m.Responses[1:]
		return r, nil
	}
	return m.Response, nil
}

// CallCount returns the number of prompts received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
