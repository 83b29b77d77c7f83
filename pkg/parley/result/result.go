// Package result holds the uniform value every repository and remote
// collaborator returns: an HTTP-style status code, a human readable message
// and an optional JSON payload.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoData is returned by Decode when the result carries no payload.
var ErrNoData = errors.New("result has no data")

// Result is serialized as {"status": 200, "message": "...", "data": ...}.
type Result struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK returns a 200 result. If data is non-nil it is marshaled into the payload;
// a marshal failure turns the result into a 500.
func OK(message string, data any) Result {
	return WithData(http.StatusOK, message, data)
}

// WithData returns a result with the given status and an encoded payload.
func WithData(status int, message string, data any) Result {
	r := Result{Status: status, Message: message}
	if data == nil {
		return r
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Failure(http.StatusInternalServerError, fmt.Sprintf("failed to encode result data: %v", err))
	}
	r.Data = raw
	return r
}

// Failure returns a result without payload.
func Failure(status int, message string) Result {
	return Result{Status: status, Message: message}
}

// FromError wraps an unexpected failure the way collaborators report it:
// status 400 and the prefix followed by the error text.
func FromError(prefix string, err error) Result {
	return Failure(http.StatusBadRequest, prefix+err.Error())
}

// IsSuccess reports whether the status is exactly 200. Callers never branch on
// the message text.
func (r Result) IsSuccess() bool {
	return r.Status == http.StatusOK
}

// HasData reports whether a non-null payload is present.
func (r Result) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// Decode unmarshals the payload into v.
func (r Result) Decode(v any) error {
	if !r.HasData() {
		return ErrNoData
	}
	return json.Unmarshal(r.Data, v)
}

// WithoutData returns a copy of r with the payload stripped, used when a
// result is echoed back to a client inside an error frame.
func (r Result) WithoutData() Result {
	return Result{Status: r.Status, Message: r.Message}
}

// Parse decodes a result produced by a remote service. Bodies that are empty
// or not a JSON object become a 500 result, and a missing status defaults to 500.
func Parse(body []byte) Result {
	if len(body) == 0 {
		return Failure(http.StatusInternalServerError, "Empty response from user service")
	}

	var raw struct {
		Status  json.Number     `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Failure(http.StatusInternalServerError, fmt.Sprintf("Failed to parse response from user service: %v", err))
	}

	status := http.StatusInternalServerError
	if n, err := raw.Status.Int64(); err == nil {
		status = int(n)
	}

	return Result{Status: status, Message: raw.Message, Data: raw.Data}
}
