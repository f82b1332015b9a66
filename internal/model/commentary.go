package model

// CommentaryState tells the view whether AI commentary is present and, if not, why.
type CommentaryState string

const (
	CommentaryOK             CommentaryState = "ok"
	CommentaryDisabled       CommentaryState = "disabled"
	CommentaryNotConfigured  CommentaryState = "not_configured"
	CommentaryCorpusNotReady CommentaryState = "corpus_not_ready"
	CommentaryUnavailable    CommentaryState = "unavailable"
)

// Commentary is the optional knowledge-base note attached to a stock report.
type Commentary struct {
	State   CommentaryState
	Message string
	Summary string
	Note    string // short operator-facing reason when State != ok
	Cached  bool
}

// Present reports whether there is any text to show.
func (c Commentary) Present() bool {
	return c.State == CommentaryOK && (c.Message != "" || c.Summary != "")
}
