package errors

import "fmt"

// ErrorCode represents a Banter error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"      // 422, local pre-submission failure
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404, no thread exists yet for this path
	ErrFetchFailed    ErrorCode = "FETCH_FAILED"    // 502, initial load failed
	ErrSubmitFailed   ErrorCode = "SUBMIT_FAILED"   // 502, submission failed, no local mutation
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// BanterError represents a structured error with code, status, and details.
type BanterError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BanterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation creates a 422 error for local validation failures.
// The focus target names the form field the UI should direct attention to.
func NewValidation(focusTarget, msg string) *BanterError {
	return &BanterError{
		Code:    ErrValidation,
		Status:  422,
		Message: msg,
		Details: map[string]any{"focus_target": focusTarget},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BanterError {
	return &BanterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when no thread exists for a path.
// Callers treat this as the normal empty state, not a failure.
func NewNotFound(path string) *BanterError {
	return &BanterError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("no comments found for path: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewFetchFailed creates a 502 error for a failed comment or config fetch.
func NewFetchFailed(err error) *BanterError {
	msg := "fetch failed"
	if err != nil {
		msg = err.Error()
	}
	return &BanterError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: msg,
	}
}

// NewSubmitFailed creates a 502 error for a failed comment submission.
// Session state is left untouched; the caller may re-prompt with the same form contents.
func NewSubmitFailed(err error) *BanterError {
	msg := "submit failed"
	if err != nil {
		msg = err.Error()
	}
	return &BanterError{
		Code:    ErrSubmitFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BanterError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BanterError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a BanterError with the given code.
func Is(err error, code ErrorCode) bool {
	if bErr, ok := err.(*BanterError); ok {
		return bErr.Code == code
	}
	return false
}

// FocusTarget extracts the focus target from a validation error, if present.
func FocusTarget(err error) string {
	bErr, ok := err.(*BanterError)
	if !ok || bErr.Details == nil {
		return ""
	}
	if ft, ok := bErr.Details["focus_target"].(string); ok {
		return ft
	}
	return ""
}
