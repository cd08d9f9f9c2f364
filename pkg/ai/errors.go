package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout indicates the inference request exceeded its deadline.
	ErrTimeout = errors.New("inference request timed out")
	// ErrConnection indicates the inference server could not be reached.
	ErrConnection = errors.New("unable to connect to inference server")
)

// ServerError reports a non-200 response from the inference server.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("inference server error: %d - %s", e.Status, e.Body)
}

// classifyTransportError maps transport-level failures onto the gateway
// taxonomy so callers never handle raw net/http errors.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
