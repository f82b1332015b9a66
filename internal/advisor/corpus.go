package advisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"quantdash/internal/model"
)

// CorpusChecker reports the indexing state of the vector store behind file search.
type CorpusChecker interface {
	Check(ctx context.Context) model.CorpusStatus
}

// VectorStoreChecker queries the vector store via the OpenAI API.
type VectorStoreChecker struct {
	client        *openai.Client
	vectorStoreID string
	timeout       time.Duration
}

func NewVectorStoreChecker(apiKey, baseURL, vectorStoreID string, timeout time.Duration) *VectorStoreChecker {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VectorStoreChecker{
		client:        openai.NewClientWithConfig(cfg),
		vectorStoreID: vectorStoreID,
		timeout:       timeout,
	}
}

func (c *VectorStoreChecker) Check(ctx context.Context) model.CorpusStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	st := model.CorpusStatus{VectorStoreID: c.vectorStoreID, State: model.CorpusUnknown, CheckedAt: time.Now()}
	vs, err := c.client.RetrieveVectorStore(ctx, c.vectorStoreID)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
			st.State = model.CorpusMissing
		}
		st.Err = err.Error()
		return st
	}

	st.Name = vs.Name
	st.Completed = vs.FileCounts.Completed
	st.InProgress = vs.FileCounts.InProgress
	st.Failed = vs.FileCounts.Failed
	st.Total = vs.FileCounts.Total
	st.State = classify(vs.Status, vs.FileCounts)
	return st
}

func classify(status string, fc openai.VectorStoreFileCount) model.CorpusState {
	switch {
	case status == "expired":
		return model.CorpusExpired
	case fc.Total == 0:
		return model.CorpusEmpty
	case status == "in_progress" || fc.InProgress > 0:
		return model.CorpusIndexing
	case fc.Completed > 0:
		return model.CorpusReady
	default:
		// every file failed or was cancelled
		return model.CorpusEmpty
	}
}
