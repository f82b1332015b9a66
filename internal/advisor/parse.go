package advisor

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Output labels the prompts ask the model to use, and the character budgets
// applied to whatever comes back.
const (
	MessageLabel  = "RAG_MSG:"
	SummaryLabel  = "RAG_SUMMARY:"
	MessageBudget = 240
	SummaryBudget = 700
)

// ParseCommentary splits free model output into a short message and a longer summary.
//
// Only lines starting with MessageLabel or SummaryLabel (after trimming) set
// a field. When the message label is missing, the first unlabeled line becomes
// the message; when the summary label is missing, the remaining unlabeled lines
// become the summary. Both results are cut to their budgets.
func ParseCommentary(text string) (msg, summary string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return "", ""
	}

	var rest []string
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, MessageLabel):
			msg = strings.TrimSpace(strings.TrimPrefix(s, MessageLabel))
		case strings.HasPrefix(s, SummaryLabel):
			summary = strings.TrimSpace(strings.TrimPrefix(s, SummaryLabel))
		default:
			rest = append(rest, s)
		}
	}

	rest = trimBlankLines(rest)
	if msg == "" && len(rest) > 0 {
		msg = rest[0]
		rest = rest[1:]
	}
	if summary == "" {
		summary = strings.TrimSpace(strings.Join(rest, "\n"))
	}
	return truncateRunes(msg, MessageBudget), truncateRunes(summary, SummaryBudget)
}

func trimBlankLines(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON decodes the first JSON object found in text into v.
// A fenced ```json block wins; otherwise the span from the first '{' to the
// last '}' is tried. It reports false when nothing decodes.
func ExtractJSON(text string, v interface{}) bool {
	var candidates []string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}
	for _, c := range candidates {
		if !gjson.Valid(c) {
			continue
		}
		if err := json.Unmarshal([]byte(c), v); err == nil {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
