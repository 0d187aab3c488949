package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier calls a remote scoring service. Requests carry a hard
// timeout so an unreachable service degrades to the caller's fallback
// instead of stalling a check.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTP creates a classifier for the given endpoint.
func NewHTTP(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClassifier) Name() string { return "http" }

type wireRequest struct {
	Content   string `json:"content"`
	Direction string `json:"direction"`
	Tool      string `json:"tool,omitempty"`
}

type wireResponse struct {
	Signals     []Signal `json:"signals"`
	Suggested   string   `json:"suggested"`
	Explanation string   `json:"explanation,omitempty"`
}

// Classify posts the content to the scoring service and decodes the result.
func (c *HTTPClassifier) Classify(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(wireRequest{
		Content:   req.Content,
		Direction: req.Direction,
		Tool:      req.Tool,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("classify request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("classify service returned %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Response{}, fmt.Errorf("decode classify response: %w", err)
	}

	switch wire.Suggested {
	case "ALLOW", "CONFIRM", "BLOCK":
	default:
		return Response{}, fmt.Errorf("classify service returned unknown verdict %q", wire.Suggested)
	}

	return Response{
		Signals:     wire.Signals,
		Suggested:   wire.Suggested,
		Explanation: wire.Explanation,
	}, nil
}
