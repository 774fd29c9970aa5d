package llm

import (
	"context"
	"strings"
	"sync"
)

// Rule answers any request whose last user message contains Match
// (case-insensitive). A non-nil Err is returned instead of Reply.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// Scripted is an offline provider for tests and dry runs. Rules are tried
// in order; unmatched requests get Default.
type Scripted struct {
	Default string

	mu    sync.Mutex
	rules []Rule
	calls []Request
}

func NewScripted(rules ...Rule) *Scripted {
	return &Scripted{Default: "OK", rules: rules}
}

// On appends a rule and returns s for chaining.
func (s *Scripted) On(match, reply string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, Rule{Match: match, Reply: reply})
	return s
}

// Fail makes requests containing match return err.
func (s *Scripted) Fail(match string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, Rule{Match: match, Err: err})
	return s
}

func (s *Scripted) Chat(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	last := strings.ToLower(lastUser(req.Messages))
	for _, r := range s.rules {
		if strings.Contains(last, strings.ToLower(r.Match)) {
			if r.Err != nil {
				return "", r.Err
			}
			return r.Reply, nil
		}
	}
	return s.Default, nil
}

func (s *Scripted) Name() string {
	return "scripted"
}

// Calls returns a copy of every request seen so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

func lastUser(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
