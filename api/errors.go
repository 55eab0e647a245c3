package api

import "fmt"

// Error is a non-2xx response from the provider's API. StatusCode and Body are
// exactly what came back over the wire so callers can branch on the status and
// inspect the provider's own error document.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// TransportError is a network-level failure: the request never produced an
// HTTP response. Distinct from Error so that callers can retry transport
// failures without ever retrying a provider rejection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
