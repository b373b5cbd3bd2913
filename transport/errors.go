package transport

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrReadEOF is returned when the stream ends before a read could be
	// satisfied in full. No partial result is exposed.
	ErrReadEOF = errors.New("read eof")

	// ErrShutdown is returned by operations on a socket after Shutdown.
	ErrShutdown = errors.New("socket already shut down")

	// ErrClosed is returned by operations on a socket after Close.
	ErrClosed = errors.New("socket already closed")

	// ErrNilConn is returned by New when given a nil transport connection.
	ErrNilConn = errors.New("nil transport connection")
)

// UnrecoverableError marks a failure this layer treats as a programming or
// resource-management defect rather than an environmental condition: a
// lifecycle transition taken twice, or an unexpected error while tearing a
// connection down. It is returned as a value instead of aborting the process
// so the caller's supervisor decides what dies.
type UnrecoverableError struct {
	Reason string
	Cause  error
}

func (e *UnrecoverableError) Error() string {
	if e.Cause == nil {
		return "unrecoverable: " + e.Reason
	}
	return fmt.Sprintf("unrecoverable: %s: %v", e.Reason, e.Cause)
}

// Unwrap returns the underlying cause, if any.
func (e *UnrecoverableError) Unwrap() error { return e.Cause }

func unrecoverable(reason string, cause error) *UnrecoverableError {
	return &UnrecoverableError{Reason: reason, Cause: cause}
}

// IsUnrecoverable reports whether err is or wraps an UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}

// isBenignCloseError reports whether err is one of the errors a correctly
// behaving peer can produce on the output half once teardown has begun: a
// broken pipe or a connection reset. Anything else at close time is a defect.
func isBenignCloseError(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
