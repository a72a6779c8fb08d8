package errors

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Validation errors, raised before any network call
	ErrTypeValidation ErrorType = "validation"
	// Field errors reported by the backend
	ErrTypeBusiness ErrorType = "business"
	// Transport failures and unexpected statuses
	ErrTypeNetwork ErrorType = "network"
	// Generic application errors
	ErrTypeApp ErrorType = "application"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage"`
	InternalErr error                  `json:"-"`
	Retryable   bool                   `json:"retryable"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the internal error to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches another AppError with the same type and code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Log logs the error at error level
func (e *AppError) Log(logger zerolog.Logger) {
	ev := logger.Error().
		Str("type", string(e.Type)).
		Str("code", e.Code).
		Str("user_message", e.GetUserMessage())
	if e.InternalErr != nil {
		ev = ev.AnErr("cause", e.InternalErr)
	}
	if len(e.Context) > 0 {
		ev = ev.Fields(e.Context)
	}
	ev.Msg(e.Message)
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		InternalErr: err,
	}
}

// As returns err as an AppError when it is one
func As(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// Predefined errors for common scenarios. They are compared by type and
// code, so never attach context to them; build a fresh error instead.
var (
	ErrNotAuthenticated = New(ErrTypeAuth, "NOT_AUTHENTICATED", "user not authenticated").
				WithUserMessage("Please log in to continue")

	ErrPasswordTooShort = New(ErrTypeValidation, "PASSWORD_TOO_SHORT", "password too short").
				WithUserMessage("Password must be at least 8 characters long")

	ErrPasswordMismatch = New(ErrTypeValidation, "PASSWORD_MISMATCH", "passwords do not match").
				WithUserMessage("Passwords do not match. Please try again")

	ErrNoteNotFound = New(ErrTypeValidation, "NOTE_NOT_FOUND", "note not found").
			WithUserMessage("The requested note could not be found")

	ErrPermissionDenied = New(ErrTypeValidation, "PERMISSION_DENIED", "permission tier does not allow this action").
				WithUserMessage("You do not have permission to do that")

	ErrWriteNotFound = New(ErrTypeValidation, "WRITE_NOT_FOUND", "pending write not found").
				WithUserMessage("The requested save could not be found")

	ErrConfigLoadFailed = New(ErrTypeConfig, "CONFIG_LOAD_FAILED", "failed to load configuration").
				WithUserMessage("Configuration file could not be loaded. Using defaults")

	ErrConfigSaveFailed = New(ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to save configuration").
				WithUserMessage("Unable to save settings. Check permissions")
)

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// WithRetryable marks the error as retryable
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if the error can be retried
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// RetryHandler provides retry functionality for operations
type RetryHandler struct {
	MaxAttempts int
	OnRetry     func(attempt int, err error)
}

// NewRetryHandler creates a new retry handler that logs each failed attempt
func NewRetryHandler(maxAttempts int, logger zerolog.Logger) *RetryHandler {
	return &RetryHandler{
		MaxAttempts: maxAttempts,
		OnRetry: func(attempt int, err error) {
			logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", maxAttempts).Msg("retry attempt failed")
		},
	}
}

// Execute runs a function with retry logic
func (r *RetryHandler) Execute(fn func() error) error {
	var lastErr error

	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if appErr, ok := err.(*AppError); ok && !appErr.IsRetryable() {
			return err
		}

		if attempt < attempts && r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}
	}

	return Wrap(lastErr, ErrTypeApp, "MAX_RETRIES_EXCEEDED",
		fmt.Sprintf("operation failed after %d attempts", attempts)).
		WithUserMessage("Operation failed after multiple attempts. Please try again later")
}
