package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

var (
	ErrNotConfigured = errors.New("ai service not configured")
	ErrUpstream      = errors.New("ai service error")
	ErrEmptyOutput   = errors.New("ai service returned no text")
)

// Generator produces text for one request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ResponsesClient calls the OpenAI Responses endpoint with a file_search tool.
type ResponsesClient struct {
	http   *resty.Client
	model  string
	hasKey bool
}

// NewResponsesClient builds a client against baseURL (for example https://api.openai.com/v1).
func NewResponsesClient(baseURL, apiKey, model string, timeout time.Duration, proxy string) *ResponsesClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if proxy != "" {
		c.SetProxy(proxy)
	}
	return &ResponsesClient{http: c, model: model, hasKey: apiKey != ""}
}

func (c *ResponsesClient) payload(req Request) map[string]interface{} {
	body := map[string]interface{}{
		"model": c.model,
		"input": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
	}
	if len(req.VectorStoreIDs) > 0 {
		body["tools"] = []map[string]interface{}{{
			"type":             "file_search",
			"vector_store_ids": req.VectorStoreIDs,
		}}
	}
	if req.MaxOutputTokens > 0 {
		body["max_output_tokens"] = req.MaxOutputTokens
	}
	return body
}

// Generate posts one request and returns the concatenated output text.
func (c *ResponsesClient) Generate(ctx context.Context, req Request) (string, error) {
	if !c.hasKey {
		return "", ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(c.payload(req)).
		Post("/responses")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrUpstream, ctxErr)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	body := resp.Body()
	if resp.StatusCode() != 200 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = truncateRunes(string(body), 200)
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode(), msg)
	}
	if gjson.GetBytes(body, "status").String() == "failed" {
		return "", fmt.Errorf("%w: %s", ErrUpstream, gjson.GetBytes(body, "error.message").String())
	}

	text := strings.TrimSpace(outputText(body))
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// outputText collects output_text parts from message items, falling back to
// the top-level output_text convenience field.
func outputText(body []byte) string {
	var parts []string
	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "message" {
			return true
		}
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				parts = append(parts, part.Get("text").String())
			}
			return true
		})
		return true
	})
	if len(parts) == 0 {
		return gjson.GetBytes(body, "output_text").String()
	}
	return strings.Join(parts, "\n")
}
