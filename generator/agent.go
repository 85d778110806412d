package generator

import (
	"context"
	"errors"

	"social_media_agent/metrics"
)

// ModelInvoker is what the Agent needs from the fallback chain.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt Prompt, s Sampling) (Result, error)
}

// Per-task sampling budgets. Captions and reel scripts take the caller's creativity.
const (
	captionsMaxTokens = 400
	reelMaxTokens     = 260
	hashtagsMaxTokens = 260
	planMaxTokens     = 700
	scoreMaxTokens    = 220
	imageMaxTokens    = 220

	hashtagsTemperature = 0.45
	planTemperature     = 0.7
	scoreTemperature    = 0.25
	imageTemperature    = 0.7
)

// Agent 为每种内容任务提供一个操作：组装提示词，然后交给 ModelInvoker。
type Agent struct {
	invoker ModelInvoker
}

func NewAgent(invoker ModelInvoker) (*Agent, error) {
	if invoker == nil {
		return nil, errors.New("model invoker is required")
	}
	return &Agent{invoker: invoker}, nil
}

func (a *Agent) Captions(ctx context.Context, topic string, creativity float64) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskCaptions, Topic: topic, Creativity: creativity})
}

func (a *Agent) ReelScript(ctx context.Context, topic string, creativity float64) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskReelScript, Topic: topic, Creativity: creativity})
}

func (a *Agent) Hashtags(ctx context.Context, topic string, count int) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskHashtags, Topic: topic, HashtagCount: count})
}

func (a *Agent) WeeklyPlan(ctx context.Context, topic, timezone string) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskWeeklyPlan, Topic: topic, Timezone: timezone})
}

func (a *Agent) ScoreCaption(ctx context.Context, caption, topic string) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskScoreCaption, Caption: caption, Topic: topic})
}

func (a *Agent) ImageCaption(ctx context.Context, image []byte, topicHint string) (Result, error) {
	return a.Generate(ctx, Request{Kind: TaskImageCaption, Image: image, Topic: topicHint})
}

// Generate 根据 req.Kind 选择提示词与采样参数。结果原样返回，不做解析。
func (a *Agent) Generate(ctx context.Context, req Request) (Result, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Result{}, err
	}
	res, err := a.invoker.Invoke(ctx, prompt, SamplingFor(req))
	metrics.GenerationsTotal.WithLabelValues(string(req.Kind), metrics.Outcome(err)).Inc()
	return res, err
}

// SamplingFor returns the temperature and output budget used for req.
func SamplingFor(req Request) Sampling {
	switch req.Kind {
	case TaskCaptions:
		return Sampling{Temperature: req.Creativity, MaxTokens: captionsMaxTokens}
	case TaskReelScript:
		return Sampling{Temperature: req.Creativity, MaxTokens: reelMaxTokens}
	case TaskHashtags:
		return Sampling{Temperature: hashtagsTemperature, MaxTokens: hashtagsMaxTokens}
	case TaskWeeklyPlan:
		return Sampling{Temperature: planTemperature, MaxTokens: planMaxTokens}
	case TaskScoreCaption:
		return Sampling{Temperature: scoreTemperature, MaxTokens: scoreMaxTokens}
	default:
		return Sampling{Temperature: imageTemperature, MaxTokens: imageMaxTokens}
	}
}
