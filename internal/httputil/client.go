package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"planmyday/internal/errors"
	"planmyday/internal/logger"
)

// DefaultTimeout is the standard timeout for HTTP requests
const DefaultTimeout = 30 * time.Second

// RetryableClient provides HTTP operations with consistent timeout and retry behavior
type RetryableClient struct {
	client  *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
}

// NewRetryableClient creates a new HTTP client with timeout and retry configuration
func NewRetryableClient(timeout time.Duration, retries int) *RetryableClient {
	return &RetryableClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		retries: retries,
		backoff: 500 * time.Millisecond,
	}
}

// NewDefaultClient creates a client with standard timeout and retry settings
func NewDefaultClient() *RetryableClient {
	return NewRetryableClient(DefaultTimeout, 2)
}

// WithBackoff sets the base wait between attempts. Tests use it to keep retries fast.
func (c *RetryableClient) WithBackoff(d time.Duration) *RetryableClient {
	c.backoff = d
	return c
}

// DoWithRetry executes an HTTP request, retrying transient failures of idempotent
// methods. POST is sent exactly once so a create is never duplicated.
func (c *RetryableClient) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Set context with timeout if not already set
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	retries := c.retries
	if !idempotent(req.Method) {
		retries = 0
	}

	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		reqWithCtx := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqWithCtx.Body = body
		}

		start := time.Now()
		resp, err := c.client.Do(reqWithCtx)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed (attempt %d/%d): %w", attempt+1, retries+1, err)
			if attempt < retries {
				if werr := c.wait(ctx, attempt); werr != nil {
					return nil, werr
				}
			}
			continue
		}
		logger.HTTPResponse(resp.StatusCode, time.Since(start))

		if shouldRetry(resp.StatusCode) && attempt < retries {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP request returned retryable status %d (attempt %d/%d)", resp.StatusCode, attempt+1, retries+1)
			if werr := c.wait(ctx, attempt); werr != nil {
				return nil, werr
			}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func (c *RetryableClient) wait(ctx context.Context, attempt int) error {
	select {
	case <-time.After(time.Duration(attempt+1) * c.backoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoJSONRequest executes a request and decodes a 2xx JSON body into result (which may
// be nil). Any other status becomes an errors.UserError carrying the server's
// {"error": "..."} message.
func (c *RetryableClient) DoJSONRequest(ctx context.Context, req *http.Request, result interface{}) error {
	resp, err := c.DoWithRetry(ctx, req)
	if err != nil {
		return errors.WrapWithContext(err, "api_connection")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewAPIError(resp.StatusCode, errorMessage(body))
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the message out of an API error body. Bodies that are not the
// documented JSON shape yield "" so the caller falls back to the status code.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

func idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// shouldRetry determines if a status code indicates a retryable error
func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError, // 500
		http.StatusBadGateway,                    // 502
		http.StatusServiceUnavailable,            // 503
		http.StatusGatewayTimeout,                // 504
		http.StatusInsufficientStorage,           // 507
		http.StatusNetworkAuthenticationRequired: // 511
		return true
	default:
		return false
	}
}
