package intake

import (
	"errors"
	"fmt"
)

// Kind classifies intake failures.
type Kind string

const (
	KindValidation Kind = "validation"
	KindRead       Kind = "read"
	KindLoad       Kind = "load"
)

var (
	ErrValidation = errors.New("image validation failed")
	ErrRead       = errors.New("failed to read file")
	ErrLoad       = errors.New("failed to load default image")
)

const (
	msgInvalidType = "Please upload a valid image file"
	msgTooLarge    = "Image size should be less than 20MB"
	msgReadFailed  = "Failed to read the image file. Please try again."
	msgLoadFailed  = "Failed to load default image"
)

// Error carries the user-facing message for an intake failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrRead:
		return e.Kind == KindRead
	case ErrLoad:
		return e.Kind == KindLoad
	}
	return false
}

// UserMessage returns the text to show for err. Non-intake errors get a generic read failure.
func UserMessage(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Message
	}
	return msgReadFailed
}

// TooLarge is the validation error for a body over MaxUploadBytes.
func TooLarge(size int64) error {
	return validationError(msgTooLarge, fmt.Errorf("size %d exceeds %d", size, MaxUploadBytes))
}

func validationError(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}
