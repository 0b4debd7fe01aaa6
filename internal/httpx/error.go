package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx HTTP response whose body could not be
// interpreted by the caller (for EdgeKV endpoints, a body that is not a
// response envelope).
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	JSON       any
}

// NewHTTPError captures a response status, header and drained body. When
// the content type is JSON the body is additionally decoded into the
// JSON field for inspection.
func NewHTTPError(statusCode int, header http.Header, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: statusCode,
		Body:       body,
		Header:     header.Clone(),
	}
	if isJSON(header.Get("Content-Type")) {
		e.JSON = decodeJSONBody(body)
	}
	return e
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Retryable reports whether the error should be considered transient.
// The client never retries on its own; this is a classification hook for
// callers that do.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		(e.StatusCode >= 500 && e.StatusCode <= 599)
}

// decodeJSONBody parses the body bytes into a generic JSON payload.
func decodeJSONBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}
