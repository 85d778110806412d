package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"social_media_agent/metrics"
)

// DefaultAttemptTimeout bounds a single model request.
const DefaultAttemptTimeout = 60 * time.Second

// Invoker walks an ordered candidate model list until one model answers.
// It keeps no state between calls and is safe for concurrent use.
type Invoker struct {
	llm            LLMClient
	models         []string
	attemptTimeout time.Duration
	logger         *slog.Logger
}

type InvokerOption func(*Invoker)

func WithAttemptTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		if d > 0 {
			i.attemptTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

func NewInvoker(llm LLMClient, models []string, opts ...InvokerOption) (*Invoker, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: llm client is required", ErrConfiguration)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: candidate model list is empty", ErrConfiguration)
	}
	inv := &Invoker{
		llm:            llm,
		models:         append([]string(nil), models...),
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Models returns a copy of the candidate list in preference order.
func (i *Invoker) Models() []string {
	return append([]string(nil), i.models...)
}

// Invoke tries each candidate once, in order. The first success wins; when all
// fail the returned *ExhaustedError carries the trace and unwraps to the last cause.
func (i *Invoker) Invoke(ctx context.Context, prompt Prompt, s Sampling) (Result, error) {
	attempts := make([]Attempt, 0, len(i.models))
	for _, model := range i.models {
		if err := ctx.Err(); err != nil {
			return Result{}, &ExhaustedError{Attempts: attempts, Cause: err}
		}

		text, attempt := i.attempt(ctx, model, prompt, s)
		attempts = append(attempts, attempt)
		if attempt.OK() {
			i.logger.Debug("model attempt succeeded",
				"model", model,
				"duration", attempt.Duration,
				"attempt", len(attempts))
			return Result{Model: model, Text: text, Attempts: attempts}, nil
		}

		i.logger.Warn("model attempt failed, falling back",
			"model", model,
			"duration", attempt.Duration,
			"error", attempt.Err)
		// Parent cancellation is not a model failure; stop walking the list.
		if err := ctx.Err(); err != nil {
			return Result{}, &ExhaustedError{Attempts: attempts, Cause: err}
		}
	}
	return Result{}, &ExhaustedError{Attempts: attempts}
}

func (i *Invoker) attempt(ctx context.Context, model string, prompt Prompt, s Sampling) (string, Attempt) {
	attemptCtx, cancel := context.WithTimeout(ctx, i.attemptTimeout)
	defer cancel()

	start := time.Now()
	text, err := i.llm.Complete(attemptCtx, model, prompt, s)
	elapsed := time.Since(start)
	if err == nil && text == "" {
		err = &ResponseShapeError{Model: model, Reason: "empty text"}
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = timedOut(model, i.attemptTimeout, err)
	}

	metrics.ModelAttemptsTotal.WithLabelValues(model, metrics.Outcome(err)).Inc()
	metrics.ModelAttemptDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	return text, Attempt{Model: model, Err: err, Duration: elapsed}
}

// timedOut marks err as a per-attempt timeout, reusing an existing
// *AttemptError so the model and status are reported once.
func timedOut(model string, d time.Duration, err error) error {
	var ae *AttemptError
	if errors.As(err, &ae) {
		annotated := *ae
		annotated.Err = fmt.Errorf("attempt timed out after %s: %w", d, ae.Err)
		return &annotated
	}
	return &AttemptError{Model: model, Err: fmt.Errorf("attempt timed out after %s: %w", d, err)}
}
