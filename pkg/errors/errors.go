package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrUnreadableSource ErrorCode = iota + 1000
	ErrUnsupportedImage
	ErrExternalService
	ErrValidation
	ErrInternal
)

// Error constructors
func NewUnreadableSource(path string, err error) *AppError {
	return &AppError{
		Code:    ErrUnreadableSource,
		Message: fmt.Sprintf("source file %s not readable", path),
		Err:     err,
	}
}

func NewUnsupportedImage(message string) *AppError {
	return &AppError{
		Code:    ErrUnsupportedImage,
		Message: message,
	}
}

func NewExternalService(service string, err error) *AppError {
	return &AppError{
		Code:    ErrExternalService,
		Message: fmt.Sprintf("%s call failed", service),
		Err:     err,
	}
}

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
