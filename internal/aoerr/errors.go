// Package aoerr defines the error kinds surfaced by the telemetry endpoints
// and their mapping onto HTTP status codes.
package aoerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoActiveSession is returned when a request carries no valid session token.
var ErrNoActiveSession = errors.New("no active session")

// RangeError reports a direct index that falls outside its collection.
type RangeError struct {
	Name  string
	Index int
	Len   int
}

func (e *RangeError) Error() string {
	if e.Len <= 0 {
		return fmt.Sprintf("%s %d out of range (collection is empty)", e.Name, e.Index)
	}
	return fmt.Sprintf("%s %d out of range (0 to %d)", e.Name, e.Index, e.Len-1)
}

// CheckIndex returns a *RangeError unless 0 <= index < n.
func CheckIndex(name string, index, n int) error {
	if index < 0 || index >= n {
		return &RangeError{Name: name, Index: index, Len: n}
	}
	return nil
}

// InvalidParameterError reports a malformed or unsupported request parameter.
// Err optionally carries a sentinel for errors.Is matching.
type InvalidParameterError struct {
	Msg string
	Err error
}

func (e *InvalidParameterError) Error() string { return e.Msg }

func (e *InvalidParameterError) Unwrap() error { return e.Err }

// InvalidParameter formats an InvalidParameterError.
func InvalidParameter(format string, args ...any) error {
	return &InvalidParameterError{Msg: fmt.Sprintf(format, args...)}
}

// LoadFailureError wraps a dataset decode failure. The cause is for logs only.
type LoadFailureError struct {
	Path string
	Err  error
}

func (e *LoadFailureError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadFailureError) Unwrap() error { return e.Err }

// LoadFailure wraps err as a LoadFailureError.
func LoadFailure(path string, err error) error {
	return &LoadFailureError{Path: path, Err: err}
}

// TransformFailureError wraps a numeric failure inside an interval or scale step.
type TransformFailureError struct {
	Err error
}

func (e *TransformFailureError) Error() string {
	return fmt.Sprintf("transform: %v", e.Err)
}

func (e *TransformFailureError) Unwrap() error { return e.Err }

// TransformFailure wraps err as a TransformFailureError.
func TransformFailure(err error) error {
	return &TransformFailureError{Err: err}
}

// HTTPStatus maps an error onto the status code the API responds with.
func HTTPStatus(err error) int {
	var (
		rangeErr *RangeError
		paramErr *InvalidParameterError
		loadErr  *LoadFailureError
		xfErr    *TransformFailureError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNoActiveSession):
		return http.StatusBadRequest
	case errors.As(err, &rangeErr), errors.As(err, &paramErr):
		return http.StatusBadRequest
	case errors.As(err, &loadErr), errors.As(err, &xfErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message shown to clients. Internal causes of load and
// transform failures are withheld.
func PublicMessage(err error) string {
	var (
		rangeErr *RangeError
		paramErr *InvalidParameterError
		loadErr  *LoadFailureError
		xfErr    *TransformFailureError
	)
	switch {
	case errors.Is(err, ErrNoActiveSession):
		return ErrNoActiveSession.Error()
	case errors.As(err, &rangeErr):
		return rangeErr.Error()
	case errors.As(err, &paramErr):
		return paramErr.Error()
	case errors.As(err, &loadErr):
		return "failed to load dataset"
	case errors.As(err, &xfErr):
		return "failed to apply interval or scale"
	default:
		return "internal error"
	}
}

// IsClientError reports whether err maps to a 4xx status.
func IsClientError(err error) bool {
	s := HTTPStatus(err)
	return s >= 400 && s < 500
}
