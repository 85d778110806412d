package generator

import (
	"context"
	"sync"
	"time"
)

// Session 持有单个用户会话内每种任务的最近一次结果。
// It is passed explicitly to the presentation layer instead of living in globals.
type Session struct {
	ID       string
	Username string

	mu    sync.RWMutex
	last  map[TaskKind]Turn
	agent *Agent
}

// Turn 记录一次生成。
type Turn struct {
	Kind      TaskKind  `json:"type"`
	Topic     string    `json:"topic"`
	Model     string    `json:"model"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSession(id, username string, agent *Agent) *Session {
	return &Session{
		ID:       id,
		Username: username,
		last:     make(map[TaskKind]Turn),
		agent:    agent,
	}
}

// Run generates through the agent and remembers the result for req.Kind.
func (s *Session) Run(ctx context.Context, req Request) (Turn, error) {
	res, err := s.agent.Generate(ctx, req)
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{
		Kind:      req.Kind,
		Topic:     req.Topic,
		Model:     res.Model,
		Text:      res.Text,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.last[req.Kind] = turn
	s.mu.Unlock()
	return turn, nil
}

// Last returns the most recent result for kind, if any.
func (s *Session) Last(kind TaskKind) (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[kind]
	return t, ok
}

// Snapshot copies all remembered results.
func (s *Session) Snapshot() map[TaskKind]Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[TaskKind]Turn, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
