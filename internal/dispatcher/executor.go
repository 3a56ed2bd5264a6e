package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPExecutionSender posts normalized trigger input to the workflow
// execution API.
type HTTPExecutionSender struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPExecutionSender(baseURL string, timeout time.Duration) *HTTPExecutionSender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExecutionSender{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Send posts the execution request. The acting user id travels in the
// X-User-Id header.
func (s *HTTPExecutionSender) Send(ctx context.Context, req ExecutionRequest) ExecutionResult {
	start := time.Now()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return ExecutionResult{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, s.baseURL+"/workflows/execute", bytes.NewReader(body))
	if err != nil {
		return ExecutionResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-Id", req.UserID.String())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return ExecutionResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return ExecutionResult{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Duration:   time.Since(start),
	}
}
