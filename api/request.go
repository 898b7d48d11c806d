package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError represents a transport-level failure: a non-success status or
// a success status whose body is not JSON. Body is best-effort.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// RequestOptions carries per-request flags.
type RequestOptions struct {
	// RequiresAuth triggers the session refresh check before the request
	// and attaches the session cookie.
	RequiresAuth bool
}

// Do sends a JSON POST to the given endpoint and path and decodes the
// JSON response into result (which may be nil to discard the body).
// Cancellation via ctx combines with the client timeout; whichever fires
// first aborts the request.
func (c *Client) Do(ctx context.Context, endpoint EndpointType, path string, payload any, opts RequestOptions, result any) error {
	if opts.RequiresAuth {
		if err := c.refreshSession(ctx); err != nil {
			return err
		}
	}

	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.baseFor(endpoint) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// Accept-Encoding is left to the transport, which offers gzip and
	// decompresses transparently.
	if opts.RequiresAuth {
		if cookie := c.cookieHeader(); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	isJSON := strings.Contains(contentType, "application/json")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !isJSON {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
