package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_media_agent/metrics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestInvoker(t *testing.T, llm LLMClient, models []string, opts ...InvokerOption) *Invoker {
	t.Helper()
	inv, err := NewInvoker(llm, models, append([]InvokerOption{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)
	return inv
}

func TestInvokeFallsBackToFirstSuccess(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{
		"A": {err: errors.New("rate limited")},
		"B": {err: &ResponseShapeError{Model: "B", Reason: "empty choices"}},
		"C": {text: "C says hi"},
		"D": {text: "D should never be asked"},
	})
	inv := newTestInvoker(t, llm, []string{"A", "B", "C", "D"})

	res, err := inv.Invoke(context.Background(), BuildCaptionsPrompt("x"), Sampling{Temperature: 0.7, MaxTokens: 400})
	require.NoError(t, err)
	assert.Equal(t, "C", res.Model)
	assert.Equal(t, "C says hi", res.Text)
	assert.Equal(t, []string{"A", "B", "C"}, llm.models())

	require.Len(t, res.Attempts, 3)
	assert.False(t, res.Attempts[0].OK())
	assert.False(t, res.Attempts[1].OK())
	assert.True(t, res.Attempts[2].OK())
}

func TestInvokeFirstModelSucceeds(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"A": {text: "ok"}, "B": {text: "no"}})
	inv := newTestInvoker(t, llm, []string{"A", "B"})

	res, err := inv.Invoke(context.Background(), BuildReelScriptPrompt("x"), Sampling{})
	require.NoError(t, err)
	assert.Equal(t, "A", res.Model)
	assert.Equal(t, []string{"A"}, llm.models())
}

func TestInvokeExhaustedSurfacesLastError(t *testing.T) {
	errA := errors.New("A down")
	errB := errors.New("B down")
	errC := &AttemptError{Model: "C", StatusCode: 401, Err: errors.New("bad key")}
	llm := newScriptedLLM(map[string]scriptedReply{
		"A": {err: errA},
		"B": {err: errB},
		"C": {err: errC},
	})
	inv := newTestInvoker(t, llm, []string{"A", "B", "C"})

	res, err := inv.Invoke(context.Background(), BuildHashtagsPrompt("x", 20), Sampling{})
	require.Error(t, err)
	assert.Empty(t, res.Model)
	assert.ErrorIs(t, err, ErrAllModelsExhausted)
	assert.ErrorIs(t, err, errC)
	assert.NotErrorIs(t, err, errA)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 3)
	assert.Equal(t, errA, exhausted.Attempts[0].Err)
	assert.Equal(t, errB, exhausted.Attempts[1].Err)
	assert.Equal(t, "C", exhausted.Attempts[2].Model)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 401, attemptErr.StatusCode)
}

func TestNewInvokerRejectsEmptyModelList(t *testing.T) {
	llm := newScriptedLLM(nil)

	_, err := NewInvoker(llm, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrAllModelsExhausted)

	_, err = NewInvoker(llm, []string{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewInvoker(nil, []string{"A"})
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.Empty(t, llm.models())
}

func TestInvokeEmptyTextFallsBack(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"A": {text: ""}, "B": {text: "fine"}})
	inv := newTestInvoker(t, llm, []string{"A", "B"})

	res, err := inv.Invoke(context.Background(), BuildCaptionsPrompt("x"), Sampling{})
	require.NoError(t, err)
	assert.Equal(t, "B", res.Model)

	var shapeErr *ResponseShapeError
	require.ErrorAs(t, res.Attempts[0].Err, &shapeErr)
	assert.Equal(t, "A", shapeErr.Model)
}

func TestInvokeAttemptTimeoutMovesOn(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"slow": {block: true}, "fast": {text: "done"}})
	inv := newTestInvoker(t, llm, []string{"slow", "fast"}, WithAttemptTimeout(20*time.Millisecond))

	res, err := inv.Invoke(context.Background(), BuildCaptionsPrompt("x"), Sampling{})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Model)
	assert.ErrorIs(t, res.Attempts[0].Err, context.DeadlineExceeded)

	var attemptErr *AttemptError
	assert.ErrorAs(t, res.Attempts[0].Err, &attemptErr)
}

func TestInvokeStopsOnParentCancel(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"A": {text: "unused"}})
	inv := newTestInvoker(t, llm, []string{"A", "B"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := inv.Invoke(ctx, BuildCaptionsPrompt("x"), Sampling{})
	assert.ErrorIs(t, err, ErrAllModelsExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, llm.models())

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Attempts)
	assert.Contains(t, err.Error(), "no model tried")
	assert.NotContains(t, err.Error(), "tried A")
}

func TestInvokeParentDeadlineMidListKeepsCalledModelsOnly(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"A": {block: true}, "B": {text: "unused"}})
	inv := newTestInvoker(t, llm, []string{"A", "B"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := inv.Invoke(ctx, BuildCaptionsPrompt("x"), Sampling{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"A"}, llm.models())

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 1)
	assert.Equal(t, "A", exhausted.Attempts[0].Model)

	var attemptErr *AttemptError
	assert.False(t, errors.As(exhausted.Attempts[0].Err, &attemptErr), "parent deadline is not a per-attempt timeout")
}

func TestInvokeAttemptTimeoutKeepsProviderError(t *testing.T) {
	providerErr := &AttemptError{Model: "A", StatusCode: 504, Err: context.DeadlineExceeded}
	llm := newScriptedLLM(map[string]scriptedReply{"A": {err: providerErr}, "B": {text: "ok"}})
	inv := newTestInvoker(t, llm, []string{"A", "B"}, WithAttemptTimeout(time.Second))

	res, err := inv.Invoke(context.Background(), BuildCaptionsPrompt("x"), Sampling{})
	require.NoError(t, err)

	got := res.Attempts[0].Err
	var attemptErr *AttemptError
	require.ErrorAs(t, got, &attemptErr)
	assert.Equal(t, 504, attemptErr.StatusCode)
	assert.ErrorIs(t, got, context.DeadlineExceeded)
	assert.Contains(t, got.Error(), "timed out")
	assert.Equal(t, 1, strings.Count(got.Error(), "model A"))
	assert.Equal(t, context.DeadlineExceeded, providerErr.Err)
}

func TestInvokeCountsAttempts(t *testing.T) {
	llm := newScriptedLLM(map[string]scriptedReply{"metric-ok": {text: "x"}})
	inv := newTestInvoker(t, llm, []string{"metric-bad", "metric-ok"})

	before := testutil.ToFloat64(metrics.ModelAttemptsTotal.WithLabelValues("metric-bad", metrics.OutcomeFailure))
	_, err := inv.Invoke(context.Background(), BuildCaptionsPrompt("x"), Sampling{})
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ModelAttemptsTotal.WithLabelValues("metric-bad", metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelAttemptsTotal.WithLabelValues("metric-ok", metrics.OutcomeSuccess)))
}

func TestInvokerModelsIsCopy(t *testing.T) {
	models := []string{"A", "B"}
	inv := newTestInvoker(t, newScriptedLLM(nil), models)
	models[0] = "Z"
	got := inv.Models()
	got[1] = "Y"
	assert.Equal(t, []string{"A", "B"}, inv.Models())
}
