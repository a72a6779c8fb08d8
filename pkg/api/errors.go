package api

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"sharednotes/pkg/errors"
)

// Error is a non-2xx response from the backend
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Fields     errors.FieldErrors
}

func (e *Error) Error() string {
	if msg, ok := e.Fields.First("detail", "message"); ok {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Field returns the first message reported under key
func (e *Error) Field(key string) (string, bool) {
	return e.Fields.Get(key)
}

// IsUnauthorized reports whether the backend rejected the credentials
func (e *Error) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// AsError extracts a backend error from err
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusCode returns the backend status carried by err, 0 when there is none
func StatusCode(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.StatusCode
	}
	return 0
}
