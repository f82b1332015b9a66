package recorder

import "quantdash/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAnalysis(_ *AnalysisRecord) error        { return nil }
func (n *NoopRecorder) RecordCorpusCheck(_ *model.CorpusStatus) error { return nil }
func (n *NoopRecorder) Recent(_ int) ([]AnalysisRecord, error)        { return nil, nil }
func (n *NoopRecorder) Close() error                                  { return nil }
