// Package httputil provides the JSON envelope shared by the onboarding API
// and its clients.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxErrorBodySize is the maximum size of error body to include in error messages
const MaxErrorBodySize = 500

// HTTPError is a non-2xx response seen by a client. Message is the envelope's
// error field when the body is an API error response.
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
}

// truncate truncates a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ParseErrorResponse checks if the response is an error (4xx/5xx) and returns
// an HTTPError. Returns nil for success responses. The body is re-wrapped so
// the caller can still read it.
func ParseErrorResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		httpErr.URL = resp.Request.URL.String()
	}
	if err == nil && len(bodyBytes) > 0 {
		httpErr.Body = truncate(string(bodyBytes), MaxErrorBodySize)
		var env Response
		if json.Unmarshal(bodyBytes, &env) == nil && env.Error != "" {
			httpErr.Message = env.Error
		}
	}
	return httpErr
}
