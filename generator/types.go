package generator

import "time"

// TaskKind 标识一种内容生成任务。
type TaskKind string

const (
	TaskCaptions     TaskKind = "captions"
	TaskReelScript   TaskKind = "reel"
	TaskHashtags     TaskKind = "hashtags"
	TaskWeeklyPlan   TaskKind = "plan"
	TaskScoreCaption TaskKind = "score"
	TaskImageCaption TaskKind = "image_caption"
)

// TaskKinds lists every supported task in display order.
var TaskKinds = []TaskKind{
	TaskCaptions,
	TaskReelScript,
	TaskHashtags,
	TaskWeeklyPlan,
	TaskScoreCaption,
	TaskImageCaption,
}

// ParseTaskKind 把外部输入映射为 TaskKind。
func ParseTaskKind(s string) (TaskKind, error) {
	for _, k := range TaskKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownTask
}

const (
	DefaultHashtagCount = 20
	DefaultTimezone     = "Asia/Kolkata"
	DefaultScoreTopic   = "general"
	DefaultCreativity   = 0.7
)

// Request describes one user action. Only the fields relevant to Kind are read.
type Request struct {
	Kind         TaskKind
	Topic        string
	Creativity   float64
	HashtagCount int
	Timezone     string
	Caption      string
	Image        []byte
}

// Sampling 是单次模型调用的采样参数。
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

// Result is the normalized outcome of a successful invocation.
type Result struct {
	Model    string    `json:"model"`
	Text     string    `json:"text"`
	Attempts []Attempt `json:"-"`
}

// Attempt records one model call in the fallback chain.
// Err is nil for the successful attempt.
type Attempt struct {
	Model    string
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt succeeded.
func (a Attempt) OK() bool { return a.Err == nil }
