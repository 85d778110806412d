package generator

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SystemPersona 是每次调用固定的 system 消息。
const SystemPersona = "You are a creative social media assistant that writes captions, hashtags, reels scripts, and social media plans."

// Section labels the model is asked to emit, per task.
var (
	CaptionLabels = []string{"CINEMATIC", "GEN-Z", "LUXURY", "VIRAL-SEO", "STORYTELLING"}
	ReelLabels    = []string{"HOOK", "VISUALS", "VOICEOVER", "CTA"}
	HashtagLabels = []string{"HIGH_REACH", "MEDIUM_REACH", "LOW_COMPETITION"}
	PlanLabels    = []string{"POST TYPE", "SUGGESTED TIME", "CAPTION", "HASHTAGS"}
	ScoreLabels   = []string{"SCORE", "RATIONALE", "IMPROVEMENT"}
)

// Prompt 表示发送给 LLM 的消息集合。Image 不进入文本，单独作为内联数据发送。
type Prompt struct {
	System string
	User   string
	Image  []byte
}

// ImageDataURL encodes the image payload as a JPEG data URL, or "" when absent.
func (p Prompt) ImageDataURL() string {
	if len(p.Image) == 0 {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p.Image)
}

// BuildPrompt 按任务类型组装提示词。
func BuildPrompt(req Request) (Prompt, error) {
	switch req.Kind {
	case TaskCaptions:
		return BuildCaptionsPrompt(req.Topic), nil
	case TaskReelScript:
		return BuildReelScriptPrompt(req.Topic), nil
	case TaskHashtags:
		return BuildHashtagsPrompt(req.Topic, req.HashtagCount), nil
	case TaskWeeklyPlan:
		return BuildWeeklyPlanPrompt(req.Topic, req.Timezone), nil
	case TaskScoreCaption:
		if strings.TrimSpace(req.Caption) == "" {
			return Prompt{}, ErrEmptyCaption
		}
		return BuildScorePrompt(req.Caption, req.Topic), nil
	case TaskImageCaption:
		return BuildImageCaptionPrompt(req.Image, req.Topic), nil
	default:
		return Prompt{}, fmt.Errorf("%w: %q", ErrUnknownTask, req.Kind)
	}
}

func BuildCaptionsPrompt(topic string) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate 5 distinct social-media captions for: %q.\n", topic))
	sb.WriteString("Label each caption:\n")
	writeLabels(&sb, CaptionLabels)
	sb.WriteString("Return only labeled captions.\n")
	return userPrompt(sb.String())
}

func BuildReelScriptPrompt(topic string) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create a tight 15-20 second Instagram Reels script for: %q.\n", topic))
	sb.WriteString("Return labeled sections exactly, in this order:\n")
	writeLabels(&sb, ReelLabels)
	return userPrompt(sb.String())
}

// BuildHashtagsPrompt renders count verbatim; callers decide defaults.
func BuildHashtagsPrompt(topic string, count int) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate %d high-quality hashtags for: %q.\n", count, topic))
	sb.WriteString("Group them as:\n")
	writeLabels(&sb, HashtagLabels)
	sb.WriteString("Return exactly in that format.\n")
	return userPrompt(sb.String())
}

func BuildWeeklyPlanPrompt(topic, timezone string) Prompt {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create a 7-day content plan for: %q.\n", topic))
	sb.WriteString("For Day 1..Day 7, include:\n")
	sb.WriteString("- POST TYPE:\n")
	sb.WriteString(fmt.Sprintf("- SUGGESTED TIME: (e.g. 6:30 PM %s)\n", timezone))
	sb.WriteString("- CAPTION: (1-2 lines)\n")
	sb.WriteString("- HASHTAGS: (5-10)\n")
	sb.WriteString("Return a numbered list.\n")
	return userPrompt(sb.String())
}

// BuildScorePrompt 原样引用 caption，不做转义。
func BuildScorePrompt(caption, topic string) Prompt {
	if topic == "" {
		topic = DefaultScoreTopic
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a social media strategist. Score the following caption for topic '%s'.\n", topic))
	sb.WriteString("Caption:\n")
	sb.WriteString(`"""` + caption + `"""` + "\n\n")
	sb.WriteString("Return:\n")
	sb.WriteString("SCORE: <0-100>\n")
	sb.WriteString("RATIONALE:\n- ...\n")
	sb.WriteString("IMPROVEMENT: <one-line>\n")
	return userPrompt(sb.String())
}

func BuildImageCaptionPrompt(image []byte, topicHint string) Prompt {
	user := "Write an Instagram caption for the image. Keep it short and engaging."
	if hint := strings.TrimSpace(topicHint); hint != "" {
		user += " Topic hint: " + hint
	}
	p := userPrompt(user)
	p.Image = image
	return p
}

func userPrompt(user string) Prompt {
	return Prompt{System: SystemPersona, User: user}
}

func writeLabels(sb *strings.Builder, labels []string) {
	for _, l := range labels {
		sb.WriteString(l + ":\n")
	}
}
