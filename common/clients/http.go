package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// StatusError is returned when the remote side answers with a non-2xx status
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// HTTPClient wraps http.Client with context-aware helpers.
// It extracts metadata from context and adds the matching headers.
type HTTPClient struct {
	client *http.Client
	logger Logger
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, logger Logger) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		client: client,
		logger: logger,
	}
}

// DoRequest creates and executes an HTTP request, extracting metadata from context
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if requestID, ok := GetRequestID(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	c.logger.Debug("outbound request", "method", method, "url", url)
	return c.client.Do(req)
}

// Do executes a request and returns the body of a 2xx response. Any other
// status becomes a *StatusError.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) ([]byte, error) {
	resp, err := c.DoRequest(ctx, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		c.logger.Warn("outbound request failed", "method", method, "url", url, "status", resp.StatusCode)
		return nil, &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

// DoJSON executes a request and decodes a 2xx JSON response into out
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, body io.Reader, headers map[string]string, out any) error {
	data, err := c.Do(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
