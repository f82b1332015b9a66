package model

import "time"

// CorpusState is the indexing state of the knowledge corpus behind the AI service.
type CorpusState string

const (
	CorpusUnknown  CorpusState = "unknown"
	CorpusReady    CorpusState = "ready"
	CorpusIndexing CorpusState = "indexing"
	CorpusEmpty    CorpusState = "empty"
	CorpusExpired  CorpusState = "expired"
	CorpusMissing  CorpusState = "missing"
)

// CorpusStatus is a point-in-time view of the vector store.
type CorpusStatus struct {
	VectorStoreID string      `json:"vector_store_id"`
	Name          string      `json:"name,omitempty"`
	State         CorpusState `json:"state"`
	Completed     int         `json:"completed"`
	InProgress    int         `json:"in_progress"`
	Failed        int         `json:"failed"`
	Total         int         `json:"total"`
	CheckedAt     time.Time   `json:"checked_at"`
	Err           string      `json:"error,omitempty"`
}

// Usable reports whether file search can return anything.
func (s CorpusStatus) Usable() bool {
	switch s.State {
	case CorpusReady:
		return true
	case CorpusIndexing:
		return s.Completed > 0
	case CorpusUnknown:
		// a failed status probe must not block the commentary call
		return true
	default:
		return false
	}
}
