// Package errors provides error types and handling for the form scanner.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents timeout errors.
	Timeout
	// RateLimit represents rate limiting (429) errors.
	RateLimit
	// NotFound represents 404 errors.
	NotFound
	// ServerError represents 5xx errors.
	ServerError
	// ClientError represents 4xx errors (except 404 and 429).
	ClientError
	// Parse represents HTML parse failures.
	Parse
	// Config represents structurally invalid configuration values.
	Config
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case RateLimit:
		return "rate_limit"
	case NotFound:
		return "not_found"
	case ServerError:
		return "server_error"
	case ClientError:
		return "client_error"
	case Parse:
		return "parse"
	case Config:
		return "config"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Network, Timeout, RateLimit, ServerError:
		return true
	default:
		return false
	}
}

// ScanError represents a categorized scan error.
type ScanError struct {
	Type       ErrorType
	Target     string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s error during %s: %s (caused by: %v)",
				e.Type.String(), e.Operation, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s error during %s: %s", e.Type.String(), e.Operation, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.Target, e.Message)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target by type.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewScanError creates a new ScanError.
func NewScanError(errType ErrorType, target, operation, message string, cause error) *ScanError {
	return &ScanError{
		Type:      errType,
		Target:    target,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(target, operation string, cause error) *ScanError {
	return NewScanError(Network, target, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(target, operation string, cause error) *ScanError {
	return NewScanError(Timeout, target, operation, "request timed out", cause)
}

// NewParseError creates a parse failure for a single input. Parse failures
// never abort batch processing of other inputs.
func NewParseError(target, operation string, cause error) *ScanError {
	err := NewScanError(Parse, target, operation, "parsing failed", cause)
	err.Retryable = false
	return err
}

// NewConfigError creates a configuration error naming the invalid setting.
// Configuration errors fail fast, before any document is analyzed.
func NewConfigError(setting, message string) *ScanError {
	err := NewScanError(Config, "", "config_load", fmt.Sprintf("invalid setting %q: %s", setting, message), nil)
	err.Retryable = false
	return err
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(target, operation string) *ScanError {
	err := NewScanError(Cancelled, target, operation, "operation cancelled", nil)
	err.Retryable = false
	return err
}

// Categorize determines the error type from a generic error.
func Categorize(err error, target string) *ScanError {
	if err == nil {
		return nil
	}

	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(target, "request")
	}
	if isTimeout(err) {
		return NewTimeoutError(target, "request", err)
	}
	if isNetworkError(err) {
		return NewNetworkError(target, "request", err)
	}

	return NewScanError(Unknown, target, "request", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code, or nil for
// non-error statuses.
func CategorizeHTTPStatus(statusCode int, target string) *ScanError {
	switch {
	case statusCode == 404:
		err := NewScanError(NotFound, target, "request", "page not found", nil)
		err.StatusCode = statusCode
		err.Retryable = false
		return err
	case statusCode == 429:
		err := NewScanError(RateLimit, target, "request", "rate limited", nil)
		err.StatusCode = statusCode
		return err
	case statusCode >= 500:
		err := NewScanError(ServerError, target, "request", fmt.Sprintf("server returned %d", statusCode), nil)
		err.StatusCode = statusCode
		return err
	case statusCode >= 400:
		err := NewScanError(ClientError, target, "request", fmt.Sprintf("client error %d", statusCode), nil)
		err.StatusCode = statusCode
		err.Retryable = false
		return err
	default:
		return nil
	}
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Retryable
	}

	return isTimeout(err) || isNetworkError(err)
}

// IsParseFailure checks if an error is a parse failure.
func IsParseFailure(err error) bool {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Type == Parse
	}
	return false
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Type == Config
	}
	return false
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Type
	}
	return Unknown
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}
