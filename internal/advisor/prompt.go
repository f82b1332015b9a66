package advisor

import (
	"fmt"
	"strings"

	"quantdash/internal/model"
)

const stockSystemPrompt = "You are a quant research assistant. Interpret the indicators the user provides " +
	"using knowledge from the attached documents. Do not make definitive predictions and do not give buy or sell instructions."

const profileSystemPrompt = "You are a Myeongri (Four Pillars of Destiny) reading assistant. Ground the reading in the " +
	"attached documents, keep the tone reflective, and never give medical, legal or investment directives."

// Request is one bounded call to the language model.
type Request struct {
	System          string
	User            string
	VectorStoreIDs  []string
	MaxOutputTokens int
}

func na(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

// BuildStockPrompt embeds the computed indicators and the output contract.
func BuildStockPrompt(ind *model.IndicatorSnapshot, score model.ScoreResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n\n", ind.Ticker)
	b.WriteString("Dashboard indicators:\n")
	fmt.Fprintf(&b, "- Price: %.2f\n", ind.LastPrice)
	fmt.Fprintf(&b, "- Change (%%): %s\n", na(ind.ChangePct))
	fmt.Fprintf(&b, "- RSI(14): %s\n", na(ind.RSI))
	fmt.Fprintf(&b, "- P/E: %s\n", na(ind.PE))
	fmt.Fprintf(&b, "- Score: %d / Status: %s\n\n", score.Score, score.Status)
	b.WriteString("Request:\n")
	b.WriteString("- From the uploaded documents (quant strategies, factors, risk management, backtesting,\n")
	b.WriteString("  trading costs, rebalancing), find principles, checklists or caveats that help interpret\n")
	b.WriteString("  the indicators above, and summarize them briefly.\n")
	b.WriteString("- No buy or sell instructions. No guaranteed returns or definitive forecasts.\n")
	b.WriteString("- Only state what the documents support.\n")
	b.WriteString("- Output format (required):\n")
	fmt.Fprintf(&b, "  %s (2-3 sentences, at most 220 characters)\n", MessageLabel)
	fmt.Fprintf(&b, "  %s (2-4 sentences, at most 500 characters)\n", SummaryLabel)
	return b.String()
}

// BuildProfilePrompt embeds the birth data and asks for a JSON reading.
func BuildProfilePrompt(req model.ProfileRequest) string {
	birthTime := req.BirthTime
	if birthTime == "" {
		birthTime = "unknown"
	}
	gender := req.Gender
	if gender == "" {
		gender = "unspecified"
	}
	name := req.Name
	if name == "" {
		name = "anonymous"
	}

	var b strings.Builder
	b.WriteString("Birth profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", name)
	fmt.Fprintf(&b, "- Birth date (solar): %s\n", req.BirthDate)
	fmt.Fprintf(&b, "- Birth time: %s\n", birthTime)
	fmt.Fprintf(&b, "- Gender: %s\n\n", gender)
	b.WriteString("Request:\n")
	b.WriteString("- Derive the four pillars and summarize the reading using the uploaded documents.\n")
	b.WriteString("- Respond with a single JSON object and nothing else:\n")
	b.WriteString(`  {"headline": "<one sentence, at most 200 characters>",` + "\n")
	b.WriteString(`   "sections": [{"title": "Personality", "body": "..."}, {"title": "Career and wealth", "body": "..."},` + "\n")
	b.WriteString(`                {"title": "Relationships", "body": "..."}, {"title": "Advice", "body": "..."}]}` + "\n")
	b.WriteString("- Each body at most 400 characters.\n")
	return b.String()
}
