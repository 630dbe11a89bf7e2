package domain

import (
	"errors"
	"fmt"
)

// CodeInvoiceCancelled is the business error code the backend returns for a
// cancelled invoice. The public payment watcher treats it as an expected
// terminal state, not a fault.
const CodeInvoiceCancelled = "BIZ_1200"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// APIError is the single error type every backend failure is normalized
// into, regardless of whether it was an HTTP-layer failure or a soft
// failure ({success:false} under HTTP 200). Soft failures carry Status 200.
type APIError struct {
	Status  int                 // HTTP status; 200 marks a business soft failure
	Code    string              // backend error code, e.g. "BIZ_1200"
	Message string              // human-readable message probed from the envelope
	Details map[string][]string // field -> validation messages
	Raw     string              // raw response body for diagnostics
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%d %s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error [%d]: %s", e.Status, e.Message)
}

// IsRetriable reports whether a later identical call could succeed.
// Server-side trouble and rate limiting are retriable; client mistakes,
// auth failures and business rejections are not.
func (e *APIError) IsRetriable() bool {
	return e.Status >= 500 || e.Status == 429
}

// IsCancelled reports whether err carries the invoice-cancelled business code.
func IsCancelled(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code == CodeInvoiceCancelled
	}
	return false
}

// IsUnauthorized reports whether err is an auth rejection.
func IsUnauthorized(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status == 401
	}
	return false
}

// NetworkError represents a transport-level failure that never reached the
// backend's envelope layer. Usually retriable.
type NetworkError struct {
	Op        string // operation that failed (e.g. "dial", "read", "write")
	Err       error  // underlying error
	Retriable bool
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotConnected is returned when a push operation is attempted while
	// the transport is down.
	ErrNotConnected = errors.New("transport not connected")

	// ErrInvoiceNotFound is returned when a public code resolves to nothing.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
