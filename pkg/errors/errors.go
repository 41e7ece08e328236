package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeSession represents browser/context launch failures
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeNavigation represents page load and navigation failures
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeValidation represents record validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStore represents place store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScraperError represents a scraper-specific error
type ScraperError struct {
	Type    ErrorType
	Target  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScraperError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Target, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, e.Message)
}

// Unwrap returns the underlying error
func (e *ScraperError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a fresh attempt could still succeed
func (e *ScraperError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeSession:
		return true
	case ErrorTypeNavigation:
		return true
	default:
		return false
	}
}

// New creates a new ScraperError
func New(errType ErrorType, target, message string, err error) *ScraperError {
	return &ScraperError{
		Type:    errType,
		Target:  target,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewSession creates a new session error
func NewSession(target, message string, err error) *ScraperError {
	return New(ErrorTypeSession, target, message, err)
}

// NewNavigation creates a new navigation error
func NewNavigation(target, message string, err error) *ScraperError {
	return New(ErrorTypeNavigation, target, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(target, message string, err error) *ScraperError {
	return New(ErrorTypeParsing, target, message, err)
}

// NewValidation creates a new validation error
func NewValidation(target, message string) *ScraperError {
	return New(ErrorTypeValidation, target, message, nil)
}

// NewStore creates a new store error
func NewStore(target, message string, err error) *ScraperError {
	return New(ErrorTypeStore, target, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(target, message string, err error) *ScraperError {
	return New(ErrorTypePublisher, target, message, err)
}

// NewCache creates a new cache error
func NewCache(target, message string, err error) *ScraperError {
	return New(ErrorTypeCache, target, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScraperError {
	return New(ErrorTypeConfiguration, "", message, err)
}
