package vehicle

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the link could not be established.
	ErrConnection = errors.New("vehicle connection failed")
	// ErrCommunication means a request or its reply was lost in transport.
	ErrCommunication = errors.New("vehicle communication failed")
	// ErrRejected means the autopilot refused the request.
	ErrRejected = errors.New("vehicle rejected command")
	// ErrTimeout means the autopilot did not answer in time.
	ErrTimeout = errors.New("vehicle did not respond in time")
	// ErrClosed means the link was closed locally.
	ErrClosed = errors.New("vehicle link closed")
)

// LinkError records the link operation that failed.
type LinkError struct {
	Op  string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("vehicle link %s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// NewLinkError wraps err with op. It returns nil for a nil err and leaves an
// existing *LinkError untouched.
func NewLinkError(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *LinkError
	if errors.As(err, &le) {
		return err
	}
	return &LinkError{Op: op, Err: err}
}

// IsLinkError reports whether err originated in a vehicle link.
func IsLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}
