// Package errors provides standardized error types for the document query server.
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes surfaced to callers in the response envelope.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeQuerySyntax       = "QUERY_SYNTAX_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConstraint        = "CONSTRAINT_VIOLATION"
	CodeConnectionTimeout = "CONNECTION_TIMEOUT"
	CodeConnectionBroken  = "CONNECTION_BROKEN"
	CodePoolExhausted     = "POOL_EXHAUSTED"
	CodeQueryFailed       = "QUERY_FAILED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeCanceled          = "CANCELED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error represents a classified server error with code, message, and optional details.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrInvalidQuery     = &Error{Code: CodeInvalidRequest, Message: "invalid query"}
	ErrDocumentNotFound = &Error{Code: CodeNotFound, Message: "document not found"}
	ErrPoolExhausted    = &Error{Code: CodePoolExhausted, Message: "no connection available within checkout timeout"}
	ErrPoolClosed       = &Error{Code: CodeUnavailable, Message: "connection pool is closed"}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeNotFound
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// SQLSTATE codes that indicate a transient store failure. Serialization
// failures and deadlocks resolve on replay; class 08 and 53300 mean the
// connection or server slot went away.
var retryableSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"08000": true, // connection_exception
	"08001": true, // sqlclient_unable_to_establish_sqlconnection
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
}

// IsRetryable reports whether an operation that failed with err may succeed
// on a fresh attempt. Only failures classified here are ever retried; the
// same policy applies to scans, CRUD and bulk insert.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case CodeConnectionTimeout, CodeConnectionBroken:
			return true
		case CodeQuerySyntax, CodeNotFound, CodeConstraint, CodeInvalidRequest,
			CodePoolExhausted, CodeCanceled:
			return false
		}
		if e.Cause == nil {
			return false
		}
		err = e.Cause
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Classify maps a raw store error to a coded Error. Errors already carrying
// a code pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Wrap(err, CodeNotFound, "document not found")
	case errors.Is(err, context.Canceled):
		return Wrap(err, CodeCanceled, "operation canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeConnectionTimeout, "operation timed out")
	case errors.Is(err, driver.ErrBadConn):
		return Wrap(err, CodeConnectionBroken, "database connection broken")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case retryableSQLStates[pgErr.Code]:
			return Wrapf(err, CodeConnectionBroken, "transient database failure (%s)", pgErr.Code)
		case strings.HasPrefix(pgErr.Code, "42"):
			return Wrap(err, CodeQuerySyntax, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "23"):
			return Wrap(err, CodeConstraint, pgErr.Message)
		}
	}

	if IsRetryable(err) {
		return Wrap(err, CodeConnectionBroken, "database connection failure")
	}

	return Wrap(err, CodeQueryFailed, "query failed")
}
