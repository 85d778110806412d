package generator

import (
	"context"
	"errors"
	"sync"
)

// scriptedLLM answers per model; unlisted models fail.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]scriptedReply
	calls   []scriptedCall
}

type scriptedReply struct {
	text  string
	err   error
	block bool
}

type scriptedCall struct {
	model    string
	prompt   Prompt
	sampling Sampling
}

func newScriptedLLM(replies map[string]scriptedReply) *scriptedLLM {
	return &scriptedLLM{replies: replies}
}

func (s *scriptedLLM) Complete(ctx context.Context, model string, prompt Prompt, smp Sampling) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, scriptedCall{model: model, prompt: prompt, sampling: smp})
	r, ok := s.replies[model]
	s.mu.Unlock()

	if !ok {
		return "", errors.New("unsupported model " + model)
	}
	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (s *scriptedLLM) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.model)
	}
	return out
}

// recordingInvoker captures what the Agent submits.
type recordingInvoker struct {
	calls []scriptedCall
	res   Result
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, prompt Prompt, s Sampling) (Result, error) {
	r.calls = append(r.calls, scriptedCall{prompt: prompt, sampling: s})
	return r.res, r.err
}
