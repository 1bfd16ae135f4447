package caption

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Mock returns a canned three-caption reply built from the prompt. It is used
// when no provider key is configured and in tests.
type Mock struct {
	// Reply overrides the generated reply when set.
	Reply string
	// Err is returned from Complete when set.
	Err error

	mu    sync.Mutex
	calls int
	last  Prompt
}

var _ Generator = (*Mock)(nil)

func (m *Mock) Complete(_ context.Context, p Prompt) (string, error) {
	m.mu.Lock()
	m.calls++
	m.last = p
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}

	var b strings.Builder
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "Caption %d:\n", i)
		fmt.Fprintf(&b, "[Title] Draft idea %d\n", i)
		fmt.Fprintf(&b, "[Caption] A sample caption number %d for your post. #draft #sample\n", i)
		fmt.Fprintf(&b, "[Call to Action] Share your thoughts below!\n\n")
	}
	return b.String(), nil
}

// Calls returns how many times Complete was called and the last prompt.
func (m *Mock) Calls() (int, Prompt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.last
}
