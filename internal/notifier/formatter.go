package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"quantdash/internal/model"
	"quantdash/internal/recorder"
	"quantdash/internal/view"
)

// FormatAnalysisReport formats one analysis into a Telegram message.
func FormatAnalysisReport(a model.Analysis) string {
	r := view.NewResult(a)
	var b strings.Builder

	if !r.OK {
		b.WriteString(fmt.Sprintf("⚠️ <b>%s</b>\n", esc(titleOf(r))))
		b.WriteString(esc(r.Message) + "\n")
		b.WriteString(esc(r.Summary) + "\n")
		return b.String()
	}

	if a.Kind == model.KindProfile {
		b.WriteString(fmt.Sprintf("🔮 <b>%s</b>\n\n", esc(r.Headline)))
		for _, s := range r.Sections {
			b.WriteString(fmt.Sprintf("<b>%s</b>\n%s\n\n", esc(s.Title), esc(s.Body)))
		}
		return strings.TrimRight(b.String(), "\n") + "\n"
	}

	b.WriteString(fmt.Sprintf("📊 <b>%s</b>", esc(r.Ticker)))
	if r.Name != "" {
		b.WriteString(" " + esc(r.Name))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Price: %s (%s%%)\n", r.Price, r.Change))
	b.WriteString(fmt.Sprintf("RSI(14): %s | P/E: %s\n", r.RSI, r.PE))
	b.WriteString(fmt.Sprintf("Market cap: %s\n\n", r.MarketCap))
	b.WriteString(fmt.Sprintf("Score: <b>%d</b> · %s\n", r.Score, esc(r.Status)))
	b.WriteString(esc(r.Message) + "\n")
	for _, n := range r.Notes {
		b.WriteString("• " + esc(n) + "\n")
	}
	if r.AINote != "" {
		b.WriteString("\n<i>" + esc(r.AINote) + "</i>\n")
	}
	return b.String()
}

func titleOf(r view.Result) string {
	if r.Ticker != "" {
		return r.Ticker + ": " + r.Status
	}
	return r.Status
}

// FormatCorpusStatus formats the knowledge-corpus state.
func FormatCorpusStatus(st model.CorpusStatus) string {
	icon := "✅"
	if !st.Usable() {
		icon = "🚫"
	} else if st.State != model.CorpusReady {
		icon = "⏳"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>Knowledge base: %s</b>\n", icon, st.State))
	if st.VectorStoreID != "" {
		b.WriteString(fmt.Sprintf("Store: <code>%s</code>", esc(st.VectorStoreID)))
		if st.Name != "" {
			b.WriteString(" (" + esc(st.Name) + ")")
		}
		b.WriteString("\n")
	}
	if st.Total > 0 || st.State == model.CorpusEmpty {
		b.WriteString(fmt.Sprintf("Files: %d ready, %d indexing, %d failed, %d total\n",
			st.Completed, st.InProgress, st.Failed, st.Total))
	}
	if st.Err != "" {
		b.WriteString("Error: " + esc(st.Err) + "\n")
	}
	if !st.CheckedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Checked: %s\n", st.CheckedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatDigest formats a watchlist run, one line per ticker.
func FormatDigest(results []model.Analysis, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>Watchlist digest</b> | %s\n\n", at.Format("2006-01-02 15:04")))
	if len(results) == 0 {
		b.WriteString("Watchlist is empty.\n")
		return b.String()
	}
	for _, a := range results {
		r := view.NewResult(a)
		if !r.OK {
			b.WriteString(fmt.Sprintf("%s: unavailable (%s)\n", esc(r.Ticker), esc(r.Reason)))
			continue
		}
		b.WriteString(fmt.Sprintf("<b>%s</b> %s (%s%%) RSI %s · <b>%d</b> %s\n",
			esc(r.Ticker), r.Price, r.Change, r.RSI, r.Score, esc(r.Status)))
	}
	return b.String()
}

// FormatRecent formats stored history rows, newest first.
func FormatRecent(recs []recorder.AnalysisRecord) string {
	if len(recs) == 0 {
		return "No analyses recorded yet."
	}
	var b strings.Builder
	b.WriteString("🕘 <b>Recent analyses</b>\n\n")
	for _, rec := range recs {
		subject := rec.Ticker
		if rec.Kind == string(model.KindProfile) {
			subject = "profile"
		}
		if rec.Outcome != "ok" {
			b.WriteString(fmt.Sprintf("%s %s: %s\n", rec.At.Format("01-02 15:04"), esc(subject), esc(rec.Outcome)))
			continue
		}
		if rec.Kind == string(model.KindProfile) {
			b.WriteString(fmt.Sprintf("%s %s: ok\n", rec.At.Format("01-02 15:04"), esc(subject)))
			continue
		}
		b.WriteString(fmt.Sprintf("%s <b>%s</b> %d %s\n", rec.At.Format("01-02 15:04"), esc(subject), rec.Score, esc(rec.Status)))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "<b>Commands</b>\n" +
		"/analyze TICKER - score a ticker (a bare ticker works too)\n" +
		"/corpus - knowledge base status\n" +
		"/recent - last analyses\n" +
		"/help - this message\n"
}

func esc(s string) string { return html.EscapeString(s) }
