package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions)
// against any OpenAI-compatible endpoint.
type OpenAILLM struct {
	client openai.Client
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: llm config is nil", ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key missing; set GROQ_API_KEY or llm.api_key", ErrConfiguration)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// The invoker owns fallback; the SDK must not retry a model on its own.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	return &OpenAILLM{client: openai.NewClient(opts...)}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, model string, prompt Prompt, s Sampling) (string, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt.System),
		openai.UserMessage(prompt.User),
	}
	// 图片以 data URL 文本形式追加为第二条 user 消息。
	if dataURL := prompt.ImageDataURL(); dataURL != "" {
		msgs = append(msgs, openai.UserMessage("[IMAGE_DATA]"+dataURL))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(s.Temperature),
	}
	if s.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		attemptErr := &AttemptError{Model: model, Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			attemptErr.StatusCode = apiErr.StatusCode
		}
		return "", attemptErr
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &ResponseShapeError{Model: model, Reason: "empty choices"}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &ResponseShapeError{Model: model, Reason: "first choice has no text content"}
	}
	return text, nil
}
