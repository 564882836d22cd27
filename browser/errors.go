package browser

import (
	"context"
	"errors"
)

var (
	// ErrTimeout marks a wait that did not observe the expected page state in
	// time. Callers treat it as "the page was slow" and may retry.
	ErrTimeout = errors.New("browser: timed out")

	// ErrNotFound marks a required element that is not on the page at all.
	// It means the page structure does not match expectations.
	ErrNotFound = errors.New("browser: element not found")

	// ErrAcquisition wraps any failure while launching, attaching to or
	// logging into the browser session.
	ErrAcquisition = errors.New("browser: session acquisition failed")
)

// IsTimeout reports whether err is a navigation or selector timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
