package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
// It answers with the labels the prompt asked for so downstream parsing works offline.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, model string, prompt Prompt, _ Sampling) (string, error) {
	var sb strings.Builder
	for _, labels := range [][]string{CaptionLabels, ReelLabels, HashtagLabels, ScoreLabels} {
		if !containsAll(prompt.User, labels) {
			continue
		}
		for _, l := range labels {
			switch l {
			case "SCORE":
				sb.WriteString("SCORE: 72\n")
			default:
				sb.WriteString(fmt.Sprintf("%s: sample output from %s\n", l, model))
			}
		}
		return sb.String(), nil
	}
	if strings.Contains(prompt.User, "Day 1..Day 7") {
		for day := 1; day <= 7; day++ {
			sb.WriteString(fmt.Sprintf("%d. Day %d\n", day, day))
			for _, l := range PlanLabels {
				sb.WriteString(fmt.Sprintf("   - %s: sample\n", l))
			}
		}
		return sb.String(), nil
	}
	sb.WriteString("Golden hour, zero filters. ✨ (" + model + ")")
	return sb.String(), nil
}

func containsAll(s string, labels []string) bool {
	for _, l := range labels {
		if !strings.Contains(s, l+":") {
			return false
		}
	}
	return true
}
