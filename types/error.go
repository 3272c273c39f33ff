package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across taskflow.
type ErrorCode string

// Task error codes
const (
	ErrAgentNotFound        ErrorCode = "AGENT_NOT_FOUND"
	ErrAgentExecutionFailed ErrorCode = "AGENT_EXECUTION_FAILED"
	ErrPoolClosed           ErrorCode = "POOL_CLOSED"
)

// Workflow error codes
const (
	ErrInvalidWorkflow  ErrorCode = "INVALID_WORKFLOW"
	ErrCyclicWorkflow   ErrorCode = "CYCLIC_WORKFLOW"
	ErrDependencyFailed ErrorCode = "DEPENDENCY_FAILED"
)

// Error represents a structured error with code, message and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetErrorCode extracts the error code from anywhere in the error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}
