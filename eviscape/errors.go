package eviscape

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned by calls that expect one object when the
	// response contains none.
	ErrEmptyResponse = errors.New("eviscape: response contains no objects")

	// ErrTokenRequired is returned by calls that only work on behalf of a
	// member when no access token is given.
	ErrTokenRequired = errors.New("eviscape: access token required")
)

// APIError is a response whose stat is not "ok".
type APIError struct {
	Method  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("eviscape: ERROR [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("eviscape: %s: ERROR [%s]: %s", e.Method, e.Code, e.Message)
}
