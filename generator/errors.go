package generator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is returned when the invoker or client cannot be built:
	// missing credential, empty candidate model list, nil client.
	ErrConfiguration = errors.New("generator: invalid configuration")

	// ErrAllModelsExhausted matches an ExhaustedError via errors.Is.
	ErrAllModelsExhausted = errors.New("generator: all candidate models failed")

	ErrUnknownTask  = errors.New("generator: unknown task kind")
	ErrEmptyCaption = errors.New("generator: caption text is required")
)

// AttemptError wraps a single model's request failure.
type AttemptError struct {
	Model      string
	StatusCode int
	Err        error
}

func (e *AttemptError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: status %d: %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ResponseShapeError means the provider answered but the payload did not
// carry an extractable first choice.
type ResponseShapeError struct {
	Model  string
	Reason string
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("model %s: malformed response: %s", e.Model, e.Reason)
}

// ExhaustedError is the terminal failure of an invocation. Attempts lists only
// models that were actually called. Cause is set when the invocation stopped
// for a reason other than a model failure, such as parent cancellation before
// a request went out. Unwrap yields Cause, or else the last attempt's error.
type ExhaustedError struct {
	Attempts []Attempt
	Cause    error
}

func (e *ExhaustedError) Error() string {
	last := e.Last()
	if last == nil {
		return ErrAllModelsExhausted.Error()
	}
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s (no model tried): %v", ErrAllModelsExhausted, last)
	}
	models := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		models = append(models, a.Model)
	}
	return fmt.Sprintf("%s (tried %s): %v", ErrAllModelsExhausted, strings.Join(models, ", "), last)
}

// Last returns Cause when set, otherwise the error of the final attempt.
func (e *ExhaustedError) Last() error {
	if e.Cause != nil {
		return e.Cause
	}
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *ExhaustedError) Unwrap() error { return e.Last() }

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllModelsExhausted }
