package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens"`
}

func (m chatMessage) text(t *testing.T) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(m.Content, &s))
	return s
}

// fakeProvider serves /chat/completions; each model gets a status and body.
type fakeProvider struct {
	mu       sync.Mutex
	requests []chatRequest
	handle   func(req chatRequest) (int, string)
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req chatRequest
	_ = json.Unmarshal(body, &req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	status, resp := f.handle(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func completionJSON(model, content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	return string(b)
}

const errorJSON = `{"error":{"message":"boom","type":"server_error","code":"boom"}}`

func newFakeClient(t *testing.T, f *fakeProvider) *OpenAILLM {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	llm, err := NewOpenAILLMFromConfig(&LLMSettings{Provider: "groq", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return llm
}

func TestNewOpenAILLMRequiresKey(t *testing.T) {
	_, err := NewOpenAILLMFromConfig(&LLMSettings{Provider: "groq"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewOpenAILLMFromConfig(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestOpenAILLMSendsChatRequest(t *testing.T) {
	f := &fakeProvider{handle: func(req chatRequest) (int, string) {
		return http.StatusOK, completionJSON(req.Model, "CINEMATIC: hi")
	}}
	llm := newFakeClient(t, f)

	text, err := llm.Complete(context.Background(), "llama-3.3-70b-versatile", BuildCaptionsPrompt("tea"), Sampling{Temperature: 0.6, MaxTokens: 400})
	require.NoError(t, err)
	assert.Equal(t, "CINEMATIC: hi", text)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "llama-3.3-70b-versatile", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, SystemPersona, req.Messages[0].text(t))
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Contains(t, req.Messages[1].text(t), "CINEMATIC")
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.6, *req.Temperature, 1e-9)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 400, *req.MaxTokens)
}

func TestOpenAILLMEmbedsImageAsDataURL(t *testing.T) {
	f := &fakeProvider{handle: func(req chatRequest) (int, string) {
		return http.StatusOK, completionJSON(req.Model, "caption")
	}}
	llm := newFakeClient(t, f)

	img := []byte{0xff, 0xd8, 0xff, 0xdb, 0x00, 0x43, 0x00, 0x08, 0x06}
	_, err := llm.Complete(context.Background(), "m", BuildImageCaptionPrompt(img, "beach"), Sampling{Temperature: 0.7, MaxTokens: 220})
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	msgs := f.requests[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[2].Role)

	content := msgs[2].text(t)
	idx := strings.Index(content, "base64,")
	require.GreaterOrEqual(t, idx, 0, content)
	assert.Contains(t, content, "data:image/jpeg;base64,")
	decoded, err := base64.StdEncoding.DecodeString(content[idx+len("base64,"):])
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}

func TestOpenAILLMErrorsAreNotRetried(t *testing.T) {
	f := &fakeProvider{handle: func(chatRequest) (int, string) {
		return http.StatusInternalServerError, errorJSON
	}}
	llm := newFakeClient(t, f)

	_, err := llm.Complete(context.Background(), "m", BuildCaptionsPrompt("x"), Sampling{})
	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, http.StatusInternalServerError, attemptErr.StatusCode)
	assert.Equal(t, "m", attemptErr.Model)
	assert.Len(t, f.requests, 1)
}

func TestOpenAILLMEmptyChoicesIsShapeError(t *testing.T) {
	f := &fakeProvider{handle: func(req chatRequest) (int, string) {
		return http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`
	}}
	llm := newFakeClient(t, f)

	_, err := llm.Complete(context.Background(), "m", BuildCaptionsPrompt("x"), Sampling{})
	var shapeErr *ResponseShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "empty choices", shapeErr.Reason)
}

func TestInvokerOverOpenAIFallsBack(t *testing.T) {
	f := &fakeProvider{handle: func(req chatRequest) (int, string) {
		switch req.Model {
		case "decommissioned":
			return http.StatusBadRequest, errorJSON
		case "rate-limited":
			return http.StatusTooManyRequests, errorJSON
		default:
			return http.StatusOK, completionJSON(req.Model, "HOOK: wait for it")
		}
	}}
	llm := newFakeClient(t, f)
	inv := newTestInvoker(t, llm, []string{"decommissioned", "rate-limited", "llama3-8b-8192"})
	agent, err := NewAgent(inv)
	require.NoError(t, err)

	res, err := agent.ReelScript(context.Background(), "street food", 0.8)
	require.NoError(t, err)
	assert.Equal(t, "llama3-8b-8192", res.Model)
	assert.Equal(t, "HOOK: wait for it", res.Text)
	assert.Len(t, f.requests, 3)
}
