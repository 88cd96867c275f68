package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for programmatic handling
const (
	// Client errors
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeOversizedImage = "OVERSIZED_IMAGE"
	ErrCodeRateLimited    = "RATE_LIMITED"

	// Pipeline errors
	ErrCodeLoadFailure         = "LOAD_FAILURE"
	ErrCodeCaptureFailure      = "CAPTURE_FAILURE"
	ErrCodeProviderFailure     = "PROVIDER_FAILURE"
	ErrCodeAnalysisUnavailable = "ANALYSIS_UNAVAILABLE"

	// Server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	ErrCodeStorage  = "STORAGE_ERROR"
)

// DomainError is the structured error type for audit operations. Hint is a
// remediation string surfaced to the caller on synchronous failures.
type DomainError struct {
	Code    string
	Message string
	Hint    string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is so errors compare by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a key/value pair to the error.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound            = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrLoadFailure         = &DomainError{Code: ErrCodeLoadFailure, Message: "page load failed"}
	ErrCaptureFailure      = &DomainError{Code: ErrCodeCaptureFailure, Message: "screenshot capture failed"}
	ErrAnalysisUnavailable = &DomainError{Code: ErrCodeAnalysisUnavailable, Message: "analysis unavailable"}
	ErrOversizedImage      = &DomainError{Code: ErrCodeOversizedImage, Message: "image exceeds size limit"}
)

// ValidationError creates a validation domain error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

// NotFoundError creates a not found domain error
func NotFoundError(resource string, id any) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
		Err:     ErrNotFound,
	}
}

// LoadFailureError wraps a page-load failure with a remediation hint.
// This is the only hard failure mode of the page loader: it means all four
// escalating load strategies were exhausted.
func LoadFailureError(targetURL string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeLoadFailure,
		Message: fmt.Sprintf("navigation-timeout loading %s", targetURL),
		Hint:    "The site did not produce a usable render in time. Check that the URL is publicly reachable and retry.",
		Details: map[string]any{"url": targetURL},
		Err:     err,
	}
}

// CaptureFailureError wraps a browser crash mid-screenshot.
func CaptureFailureError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeCaptureFailure,
		Message: "screenshot capture failed",
		Hint:    "The browser crashed or navigated away during capture. Retry the audit.",
		Err:     err,
	}
}

// OversizedImageError is returned when the compression ladder could not meet
// the provider's hard ceiling.
func OversizedImageError(sizeBytes int, limitBytes int) *DomainError {
	return &DomainError{
		Code:    ErrCodeOversizedImage,
		Message: fmt.Sprintf("image is %d bytes after maximum compression, limit is %d", sizeBytes, limitBytes),
		Hint:    "Upload a smaller image or crop it to the area you want reviewed.",
		Details: map[string]any{"size_bytes": sizeBytes, "limit_bytes": limitBytes},
		Err:     ErrOversizedImage,
	}
}

// AnalysisUnavailableError enumerates exactly which credentials were missing
// and which providers errored, so misconfiguration is diagnosable from the
// error alone.
func AnalysisUnavailableError(missingCreds []string, providerErrors map[string]string) *DomainError {
	var parts []string
	if len(missingCreds) > 0 {
		parts = append(parts, "missing credentials: "+strings.Join(missingCreds, ", "))
	}
	for name, reason := range providerErrors {
		parts = append(parts, fmt.Sprintf("%s failed (%s)", name, reason))
	}
	detail := "no providers attempted"
	if len(parts) > 0 {
		detail = strings.Join(parts, "; ")
	}
	return &DomainError{
		Code:    ErrCodeAnalysisUnavailable,
		Message: "all vision providers failed or were unconfigured: " + detail,
		Hint:    "Configure at least one provider API key and verify its quota.",
		Details: map[string]any{
			"missing_credentials": missingCreds,
			"provider_errors":     providerErrors,
		},
		Err: ErrAnalysisUnavailable,
	}
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// AsDomainError converts err to a DomainError if possible.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
