package llm

import "fmt"

// AuthError marks a non-retryable credential/authorization failure.
type AuthError struct{ Detail string }

func (e *AuthError) Error() string { return "authentication failed: " + e.Detail }

// ValidationError marks a non-retryable malformed-request failure.
type ValidationError struct{ Detail string }

func (e *ValidationError) Error() string { return "invalid request: " + e.Detail }

// TransportError marks a retryable network/5xx/timeout failure.
type TransportError struct {
	Detail string
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (status %d): %s", e.Status, e.Detail)
}

// EmptyResponse marks a successful call whose output was empty — a
// caller-level failure, not a transport failure, but still retryable by
// the gateway's retry loop.
type EmptyResponse struct{}

func (e *EmptyResponse) Error() string { return "empty response from model" }

// UnparsableResponse marks total failure of the six-stage tolerant JSON
// parser. DebugPath, if non-empty, names where the raw response was
// dumped for offline inspection — never shown to end users.
type UnparsableResponse struct {
	RawPreview string
	DebugPath  string
}

func (e *UnparsableResponse) Error() string {
	msg := "could not parse a JSON value from the model response"
	if e.DebugPath != "" {
		msg += " (raw response saved to " + e.DebugPath + ")"
	}
	return msg
}

func isRetryable(err error) bool {
	switch err.(type) {
	case *TransportError, *EmptyResponse:
		return true
	default:
		return false
	}
}
