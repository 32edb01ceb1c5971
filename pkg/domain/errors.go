package domain

import (
	"errors"
	"fmt"
)

// ErrChainNotFound is returned when a chain ID cannot be found in the store.
var ErrChainNotFound = errors.New("chain not found")

// ErrEmptyQuery is returned when a chain is started without a query.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrMissingAPIKey is returned when the transport is built without credentials.
var ErrMissingAPIKey = errors.New("API key not configured")

// TransportError reports a failure talking to the model provider:
// network errors, non-2xx statuses and malformed response envelopes.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Err)
	default:
		return "transport error: " + e.Message
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err carries a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
