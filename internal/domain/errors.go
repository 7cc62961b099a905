package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeStep         ErrorType = "step"
	ErrorTypeExtraction   ErrorType = "extraction"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeAPI          ErrorType = "api"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeResponse     ErrorType = "response"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeIO           ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func InvalidInputError(message string, err error) *DomainError {
	return NewError(ErrorTypeInvalidInput, message, err)
}

func StepError(message string, err error) *DomainError {
	return NewError(ErrorTypeStep, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func AuthError(message string, err error) *DomainError {
	return NewError(ErrorTypeAuth, message, err)
}

func RateLimitError(message string, err error) *DomainError {
	return NewError(ErrorTypeRateLimit, message, err)
}

func ResponseError(message string, err error) *DomainError {
	return NewError(ErrorTypeResponse, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether any DomainError in err's chain has the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// FailureMessage returns the human-readable cause of err, without the
// "[type]" prefix a DomainError adds to Error().
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		if de.Err != nil {
			return fmt.Sprintf("%s: %s", de.Message, FailureMessage(de.Err))
		}
		return de.Message
	}
	return err.Error()
}
