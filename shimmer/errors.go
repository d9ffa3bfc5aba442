package shimmer

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/shimmer-console/core/client"
)

var (
	// ErrUserCancelled is returned to front ends when the operator aborted a flow.
	// The console itself treats a cancelled flow as a silent no-op.
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrUnknownEndpoint is returned when no data endpoint exists for a shim and schema
	ErrUnknownEndpoint = errors.New("no endpoint for schema")
	// ErrIncompleteParameters is returned when a data request is executed before user,
	// shim, schema and date type are known
	ErrIncompleteParameters = errors.New("request parameters incomplete")
	// ErrUnknownShim is returned for shims which are not in the registry
	ErrUnknownShim = errors.New("unknown shim")
)

// NetworkError is a failed call to the shim server, either a transport error or
// an unexpected status code.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Status returns the http status of the response, or 0 for transport errors
func (e *NetworkError) Status() int {
	var statusErr *client.StatusError
	if errors.As(e.Err, &statusErr) {
		return statusErr.Status
	}
	return 0
}

// InlineError is shown next to the control which triggered a data request
type InlineError struct {
	Status int
	Err    error
}

func (e *InlineError) Error() string {
	return fmt.Sprintf("Error, could not get data from server%d", e.Status)
}

func (e *InlineError) Unwrap() error {
	return e.Err
}

func networkError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &NetworkError{Op: op, Err: err}
}
