package codegen

import (
	"errors"
	"fmt"
)

// Sentinel errors for generation. Check with errors.Is().
var (
	// ErrUnsupportedType indicates a generation type no strategy covers.
	// Fatal for the request; not retryable.
	ErrUnsupportedType = errors.New("unsupported generation type")

	// ErrEmptyMessage indicates a blank user message.
	ErrEmptyMessage = errors.New("message is empty")
)

// genericStreamError is what callers show when a failure carries no
// business message.
const genericStreamError = "generation failed, please try again"

// BusinessError is a failure with a message safe to show the end user.
// Stream handlers send its message in the terminal error event; all
// other errors are reported with a generic fallback.
type BusinessError struct {
	Message string
	Err     error // optional cause
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error { return e.Err }

// NewBusinessError creates a user-visible error.
func NewBusinessError(message string) *BusinessError {
	return &BusinessError{Message: message}
}

// UserMessage extracts the message to send in a terminal error event:
// the business message when err is (or wraps) a BusinessError, the
// generic fallback otherwise.
func UserMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message
	}
	if errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrEmptyMessage) {
		return err.Error()
	}
	return genericStreamError
}
