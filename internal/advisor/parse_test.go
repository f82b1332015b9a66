package advisor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"quantdash/internal/model"
)

func TestParseCommentary(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantMsg     string
		wantSummary string
	}{
		{"empty", "", "", ""},
		{"whitespace", "  \n\t ", "", ""},
		{"both labels", "RAG_MSG: short note\nRAG_SUMMARY: longer summary", "short note", "longer summary"},
		{"labels reversed", "RAG_SUMMARY: s\nRAG_MSG: m", "m", "s"},
		{"labels indented", "  RAG_MSG:  m  \n  RAG_SUMMARY: s", "m", "s"},
		{"unlabeled lines ignored when both labels present", "RAG_MSG: a\nb\nRAG_SUMMARY: c\nd", "a", "c"},
		{"summary from lines after message", "RAG_MSG: m\nx\ny", "m", "x\ny"},
		{"summary from lines around message", "lead\nRAG_MSG: m\n\ntail", "m", "lead\n\ntail"},
		{"no labels", "first line\nsecond\nthird", "first line", "second\nthird"},
		{"single line", "only this", "only this", ""},
		{"summary only", "intro\nRAG_SUMMARY: s", "intro", "s"},
		{"message only", "RAG_MSG: m", "m", ""},
		{"crlf", "RAG_MSG: m\r\nRAG_SUMMARY: s\r\n", "m", "s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, summary := ParseCommentary(tt.in)
			if msg != tt.wantMsg || summary != tt.wantSummary {
				t.Errorf("ParseCommentary(%q) = (%q, %q), want (%q, %q)", tt.in, msg, summary, tt.wantMsg, tt.wantSummary)
			}
		})
	}
}

func TestParseCommentaryBudgets(t *testing.T) {
	long := strings.Repeat("가", 1000)
	msg, summary := ParseCommentary(long + "\n" + long)
	if n := utf8.RuneCountInString(msg); n != MessageBudget {
		t.Errorf("message runes = %d, want %d", n, MessageBudget)
	}
	if n := utf8.RuneCountInString(summary); n != SummaryBudget {
		t.Errorf("summary runes = %d, want %d", n, SummaryBudget)
	}
	if !utf8.ValidString(msg) || !utf8.ValidString(summary) {
		t.Error("truncation split a rune")
	}
}

func TestExtractJSON(t *testing.T) {
	var out profileEntry
	text := "Here you go:\n```json\n{\"headline\": \"h\", \"sections\": [{\"title\": \"t\", \"body\": \"b\"}]}\n```\nthanks"
	if !ExtractJSON(text, &out) {
		t.Fatal("fenced json not extracted")
	}
	if out.Headline != "h" || len(out.Sections) != 1 || out.Sections[0].Body != "b" {
		t.Errorf("got %+v", out)
	}

	out = profileEntry{}
	if !ExtractJSON(`prefix {"headline": "bare"} suffix`, &out) || out.Headline != "bare" {
		t.Errorf("bare json: got %+v", out)
	}

	if ExtractJSON("no json here", &out) {
		t.Error("expected false for plain text")
	}
	if ExtractJSON("{broken", &out) {
		t.Error("expected false for broken json")
	}
}

func TestParseReadingFallsBackToLabels(t *testing.T) {
	got := parseReading("RAG_MSG: headline\nRAG_SUMMARY: body")
	if got.Headline != "headline" || len(got.Sections) != 1 || got.Sections[0].Body != "body" {
		t.Errorf("got %+v", got)
	}
}

func TestParseReadingDropsEmptySections(t *testing.T) {
	got := parseReading(`{"headline":"h","sections":[{"title":"a","body":""},{"title":"b","body":"x"}]}`)
	if len(got.Sections) != 1 || got.Sections[0].Title != "b" {
		t.Errorf("sections = %+v", got.Sections)
	}
}

func TestBuildStockPrompt(t *testing.T) {
	ind := &model.IndicatorSnapshot{Ticker: "AAPL", LastPrice: 150, RSI: model.Float(62), PE: nil, ChangePct: model.Float(1.35)}
	p := BuildStockPrompt(ind, model.ScoreResult{Score: 59, Status: "Neutral / Selective"})
	for _, want := range []string{"Ticker: AAPL", "RSI(14): 62.00", "P/E: N/A", "Change (%): 1.35", "Score: 59", MessageLabel, SummaryLabel} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildProfilePrompt(t *testing.T) {
	p := BuildProfilePrompt(model.ProfileRequest{BirthDate: "1990-05-17"})
	for _, want := range []string{"1990-05-17", "Birth time: unknown", "Name: anonymous", `"headline"`} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
