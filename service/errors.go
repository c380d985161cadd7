package service

import (
	"fmt"
	"math"
)

// Client facing messages.
const (
	MsgNoFilePart     = "No file part in the request."
	MsgNoSelectedFile = "No selected file."
	MsgUndecodable    = "Uploaded file could not be decoded as an image."
)

// ValidationError is a problem with the upload itself. Its message is
// safe to return to the client as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// FileTooLarge is the ValidationError for uploads over limit bytes.
func FileTooLarge(limit int64) *ValidationError {
	mb := math.Round(float64(limit) / (1024 * 1024))
	return NewValidationError(fmt.Sprintf("File size exceeds %.0fMB limit. Please upload a smaller image.", mb))
}

// InternalError is any failure that is not the client's fault.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("An internal error occurred during prediction: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func internal(err error) *InternalError {
	return &InternalError{Err: err}
}
