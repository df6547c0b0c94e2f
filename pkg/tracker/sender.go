package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSender posts records to the analytics collection endpoints.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &HTTPSender{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Bootstrap registers the caller's session with the service.
func (s *HTTPSender) Bootstrap(ctx context.Context) error {
	return s.post(ctx, "/analytics/session", nil)
}

// Send delivers one interaction record.
func (s *HTTPSender) Send(ctx context.Context, rec Record) error {
	return s.post(ctx, "/analytics/track-interaction", rec)
}

func (s *HTTPSender) post(ctx context.Context, path string, body any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver record: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("collection endpoint returned %d", resp.StatusCode)
	}
	return nil
}
