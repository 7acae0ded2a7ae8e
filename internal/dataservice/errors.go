package dataservice

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the referenced record does not exist on the
// platform.
var ErrNotFound = errors.New("record not found")

// AuthError indicates the platform rejected the caller's credentials.
// It is returned when a request comes back 401.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ServiceError is any other failure reported by or while reaching the
// platform. Callers treat the cause as opaque: log it, surface it, do
// not retry.
type ServiceError struct {
	// Op is the operation that failed ("query", "insert", "update",
	// "delete", "subscribe").
	Op string

	// Table is the table the operation targeted.
	Table string

	// StatusCode is the HTTP status, or zero when the request never
	// produced a response.
	StatusCode int

	// Message is the platform's error text, if any.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("data service: %s %s: status %d: %s", e.Op, e.Table, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("data service: %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("data service: %s %s: %s", e.Op, e.Table, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }
