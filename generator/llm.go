package generator

import "context"

// LLMClient 抽象大模型客户端，便于替换/Mock。
// Implementations issue exactly one request for the given model and must be
// safe for concurrent use.
type LLMClient interface {
	Complete(ctx context.Context, model string, prompt Prompt, s Sampling) (string, error)
}

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModels is the fallback order used when none is configured.
var DefaultModels = []string{
	"llama-3.3-70b-versatile",
	"llama3-70b-8192",
	"llama3-8b-8192",
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	APIKey   string
	BaseURL  string
}
