package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	TypeConfiguration ErrorType = "CONFIGURATION"
	TypeAuth          ErrorType = "AUTH"
	TypeBadRequest    ErrorType = "BAD_REQUEST"
	TypeUpstream      ErrorType = "UPSTREAM"
	TypeAI            ErrorType = "AI"
	TypeStorage       ErrorType = "STORAGE"
	TypeTracker       ErrorType = "TRACKER"
	TypeInternal      ErrorType = "INTERNAL"
)

// AppError represents a domain-level error with a type and an underlying error.
// Message is safe to show to callers; Err and Context are for logs only.
type AppError struct {
	Type       ErrorType
	Message    string
	Context    map[string]interface{}
	Err        error
	Suggestion string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on type and message so sentinel values survive WithError/WithContext.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithError creates a new AppError with an underlying error
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    e.Context,
		Err:        err,
		Suggestion: e.Suggestion,
	}
}

// WithContext creates a new AppError with additional context
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	ctx := make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    ctx,
		Err:        e.Err,
		Suggestion: e.Suggestion,
	}
}

func (e *AppError) WithSuggestion(suggestion string) *AppError {
	return &AppError{
		Type:       e.Type,
		Message:    e.Message,
		Context:    e.Context,
		Err:        e.Err,
		Suggestion: suggestion,
	}
}

// HTTPStatus returns the status code a caller sees for this error type.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case TypeAuth:
		return http.StatusUnauthorized
	case TypeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError
func NewAppError(t ErrorType, msg string, err error) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Err:     err,
	}
}

// HTTPStatus maps any error to a status code, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the caller-facing message of err without any
// wrapped cause.
func PublicMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

// Authentication errors. Missing header and wrong credentials share a message.
var (
	ErrAuthRequired        = NewAppError(TypeAuth, "Authentication Required", nil)
	ErrInvalidAuthHeader   = NewAppError(TypeAuth, "Invalid Authorization header", nil)
	ErrUnsupportedAuthType = NewAppError(TypeAuth, "Unsupported authentication type", nil)
)

// Request errors
var (
	ErrRequestNotJSON = NewAppError(TypeBadRequest, "Request must be JSON", nil)
)

// Upstream errors surfaced to the webhook caller
var (
	ErrPromptUnavailable = NewAppError(TypeUpstream, "Failed to load system prompt", nil)

	ErrGenerationFailed = NewAppError(TypeUpstream, "Failed to get response from Gemini", nil)

	ErrCommentFailed = NewAppError(TypeUpstream, "Failed to post comment to Backlog", nil)

	ErrMisconfigured = NewAppError(TypeUpstream, "Service misconfigured", nil)
)

// Configuration errors
var (
	ErrConfigMissing = NewAppError(TypeConfiguration, "required configuration is missing", nil).
				WithSuggestion("Set every required environment variable or pass --env-file")

	ErrConfigInvalid = NewAppError(TypeConfiguration, "configuration is invalid", nil)
)

// AI errors
var (
	ErrAIGeneration = NewAppError(TypeAI, "AI generation failed", nil)

	ErrAIEmptyResponse = NewAppError(TypeAI, "empty response from AI", nil)

	ErrAIQuotaExceeded = NewAppError(TypeAI, "Gemini quota exceeded or rate limited", nil).
				WithSuggestion("Check the Vertex AI quota for the project and region")

	ErrAIUnauthorized = NewAppError(TypeAI, "Gemini rejected the ambient credentials", nil).
				WithSuggestion("Grant roles/aiplatform.user to the runtime service account")
)

// Storage errors
var (
	ErrPromptFetch = NewAppError(TypeStorage, "failed to fetch prompt object", nil)

	ErrPromptEmpty = NewAppError(TypeStorage, "prompt object is empty", nil)
)

// Tracker errors
var (
	ErrTrackerRequest = NewAppError(TypeTracker, "Backlog request failed", nil)

	ErrTrackerStatus = NewAppError(TypeTracker, "Backlog returned a non-success status", nil)
)
