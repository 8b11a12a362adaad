package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by driver operations after Close.
var ErrClosed = errors.New("meter connection closed")

// TimeoutError reports that a device gave no reply within the deadline.
// Timeouts are recoverable and surfaced per call; the driver never retries
// on its own.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply to %q within %v", e.Command, e.Timeout)
}

// IsTimeout reports whether err is a device reply timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
