package aqi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks network, timeout and non-2xx failures talking to the upstream.
	ErrTransport = errors.New("transport failure")

	// ErrUpstreamRejected matches any *UpstreamError.
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrUnparseable is returned by Normalize for records that cannot be used at all.
	ErrUnparseable = errors.New("unparseable record")

	// ErrPersistence marks a store write failure.
	ErrPersistence = errors.New("persistence failure")
)

// UpstreamError is an application-level error reported in a 2xx upstream body.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream rejected request: %s", e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamRejected
}

// TransportError wraps the cause of a failed upstream exchange.
func TransportError(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransport, cause)
}
