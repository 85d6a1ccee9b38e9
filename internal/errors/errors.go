package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UserError represents an error with user-friendly messaging and remediation hints
type UserError struct {
	Title       string // Brief title of the error
	Message     string // Detailed error message
	Remediation string // What the user can do to fix it
	Status      int    // HTTP status when the error came from the task API
	Cause       error  // Underlying error, if any
}

func (e *UserError) Error() string {
	var parts []string

	if e.Title != "" {
		parts = append(parts, e.Title)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Remediation != "" {
		parts = append(parts, fmt.Sprintf("💡 %s", e.Remediation))
	}

	return strings.Join(parts, "\n")
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// Brief returns the one-line text shown in board notifications.
func Brief(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if stderrors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return err.Error()
}

// StatusCode extracts the API status carried by err, or 0.
func StatusCode(err error) int {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// Common error constructors with built-in remediation

// NewAPIError builds the error for a non-2xx task API response. message is the
// server's {"error": ...} text; when empty the status code stands in.
func NewAPIError(statusCode int, message string) *UserError {
	var title, remediation string

	switch {
	case statusCode == http.StatusUnauthorized:
		title = "❌ Authentication Failed"
		remediation = "Your session token was rejected. Check token_command or PLANMYDAY_TOKEN, then run: planmyday auth status"
	case statusCode == http.StatusForbidden:
		title = "❌ Access Forbidden"
		remediation = "Your account is not allowed to change this task"
	case statusCode == http.StatusNotFound:
		title = "❌ Task Not Found"
		remediation = "The task may have been deleted elsewhere. Press r to reload the board"
	case statusCode >= 500:
		title = "❌ Server Error"
		remediation = "The PlanMyDay API is having trouble. Try again in a moment"
	default:
		title = "❌ Request Failed"
		remediation = "Run with --verbose to see request details"
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}

	return &UserError{
		Title:       title,
		Message:     message,
		Remediation: remediation,
		Status:      statusCode,
	}
}

func NewConnectionError(err error) *UserError {
	errStr := err.Error()
	var remediation string

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		remediation = "The API did not answer in time. Check your connection and try again"
	} else if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "connection refused") {
		remediation = "Check api_url in your config. Run: planmyday config doctor"
	} else {
		remediation = "Run: planmyday config doctor to diagnose the issue"
	}

	return &UserError{
		Title:       "❌ Connection Error",
		Message:     "Failed to reach the PlanMyDay API. " + errStr,
		Remediation: remediation,
		Cause:       err,
	}
}

func NewAuthError(cause error) *UserError {
	msg := "No session token found."
	if cause != nil {
		msg = "Could not obtain a session token: " + cause.Error()
	}
	return &UserError{
		Title:       "Authentication Error",
		Message:     msg,
		Remediation: "Set PLANMYDAY_TOKEN, or configure token_command in ~/.config/planmyday/config.toml",
		Cause:       cause,
	}
}

func NewTokenExpiredError(expiredAt time.Time) *UserError {
	return &UserError{
		Title:       "Authentication Error",
		Message:     fmt.Sprintf("Session token expired at %s.", expiredAt.Local().Format(time.RFC822)),
		Remediation: "Sign in to PlanMyDay again and refresh your token",
	}
}

// NewValidationError wraps a client-side input error. No request has been sent.
func NewValidationError(err error) *UserError {
	return &UserError{
		Title:   "❌ Invalid Input",
		Message: err.Error(),
		Cause:   err,
	}
}

func NewConfigError(operation string, err error) *UserError {
	var remediation string
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "permission denied"):
		remediation = "Check file permissions. Run: chmod 644 ~/.config/planmyday/config.toml"
	case strings.Contains(errStr, "no such file"):
		remediation = "Run: planmyday setup to create a configuration file"
	case strings.Contains(errStr, "decode") || strings.Contains(errStr, "parse"):
		remediation = "Configuration file format is invalid. Run: planmyday config doctor"
	default:
		remediation = "Run: planmyday config doctor to diagnose configuration issues"
	}

	return &UserError{
		Title:       "❌ Configuration Error",
		Message:     fmt.Sprintf("Failed to %s configuration: %s", operation, errStr),
		Remediation: remediation,
		Cause:       err,
	}
}

func NewCardNotFoundError(id string) *UserError {
	return &UserError{
		Title:       "❌ Task Not Found",
		Message:     fmt.Sprintf("No task with id %q on the board.", id),
		Remediation: "Run: planmyday list to see task ids",
	}
}

// Helper function to wrap existing errors with better messaging
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	if userErr, ok := err.(*UserError); ok {
		// Already a user error, just return it
		return userErr
	}

	errStr := err.Error()

	switch context {
	case "api_connection":
		return NewConnectionError(err)
	case "auth":
		return NewAuthError(err)
	case "validation":
		return NewValidationError(err)
	case "config_load", "config_save":
		return NewConfigError(strings.TrimPrefix(context, "config_"), err)
	default:
		return &UserError{
			Title:       "❌ Error",
			Message:     errStr,
			Remediation: "Run with --verbose flag for more details",
			Cause:       err,
		}
	}
}
