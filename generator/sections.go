package generator

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseSections splits labeled model output ("LABEL: text") into a map keyed
// by label. Text following a label up to the next known label belongs to it.
// Unknown lines before the first label are dropped. The model is not obliged
// to honor the format, so missing labels are simply absent.
func ParseSections(raw string, labels []string) map[string]string {
	out := make(map[string]string)
	if len(labels) == 0 {
		return out
	}
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		quoted = append(quoted, regexp.QuoteMeta(l))
	}
	re := regexp.MustCompile(`(?m)^[\s\-\*#\d\.]*\**(` + strings.Join(quoted, "|") + `)\**\s*:\**`)

	matches := re.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		label := raw[m[2]:m[3]]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(raw[m[1]:end])
		if _, seen := out[label]; !seen {
			out[label] = body
		}
	}
	return out
}

// LabelsFor returns the section labels requested for kind.
func LabelsFor(kind TaskKind) []string {
	switch kind {
	case TaskCaptions:
		return CaptionLabels
	case TaskReelScript:
		return ReelLabels
	case TaskHashtags:
		return HashtagLabels
	case TaskScoreCaption:
		return ScoreLabels
	default:
		return nil
	}
}

var scoreRe = regexp.MustCompile(`(?i)SCORE\s*:\s*(\d+)\b`)

// ExtractScore reads the SCORE value; ok is false when missing or out of 0-100.
func ExtractScore(raw string) (int, bool) {
	m := scoreRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}
