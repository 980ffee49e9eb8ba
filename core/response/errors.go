package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/filedrop/core/handler"
)

// HTTPError is a structured failure. It renders as
// {"success":false,"code":...,"message":...} so clients can branch on
// one field for every endpoint.
type HTTPError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewHTTPError creates a 500 error with a custom message.
func NewHTTPError(message string) HTTPError {
	return ErrInternalServerError.WithMessage(message)
}

// Error implements the error interface.
func (e HTTPError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status code for the error.
func (e HTTPError) StatusCode() int {
	return e.Status
}

// MarshalJSON adds the success flag to the error body.
func (e HTTPError) MarshalJSON() ([]byte, error) {
	type body HTTPError
	return json.Marshal(struct {
		Success bool `json:"success"`
		body
	}{Success: false, body: body(e)})
}

// WithMessage returns a copy of the error with a custom message.
func (e HTTPError) WithMessage(message string) HTTPError {
	e.Message = message
	return e
}

// WithCode returns a copy of the error with a custom machine-readable code.
func (e HTTPError) WithCode(code string) HTTPError {
	e.Code = code
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e HTTPError) WithDetails(details map[string]any) HTTPError {
	e.Details = details
	return e
}

// WithError returns a copy of the error with the cause recorded in details.
func (e HTTPError) WithError(err error) HTTPError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details["cause"] = err.Error()
	e.Details = details
	return e
}

func newError(status int, code string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: http.StatusText(status)}
}

var (
	ErrBadRequest            = newError(http.StatusBadRequest, "bad_request")
	ErrForbidden             = newError(http.StatusForbidden, "forbidden")
	ErrNotFound              = newError(http.StatusNotFound, "not_found")
	ErrMethodNotAllowed      = newError(http.StatusMethodNotAllowed, "method_not_allowed")
	ErrRequestTimeout        = newError(http.StatusRequestTimeout, "request_timeout")
	ErrConflict              = newError(http.StatusConflict, "conflict")
	ErrRequestEntityTooLarge = newError(http.StatusRequestEntityTooLarge, "request_entity_too_large")
	ErrUnprocessableEntity   = newError(http.StatusUnprocessableEntity, "unprocessable_entity")
	ErrTooManyRequests       = newError(http.StatusTooManyRequests, "too_many_requests")
	ErrClientClosedRequest   = HTTPError{Status: 499, Code: "client_closed_request", Message: "Client Closed Request"}
	ErrInternalServerError   = newError(http.StatusInternalServerError, "internal_server_error")
	ErrServiceUnavailable    = newError(http.StatusServiceUnavailable, "service_unavailable")
	ErrInsufficientStorage   = newError(http.StatusInsufficientStorage, "insufficient_storage")
)

var httpErrorsByStatus = map[int]HTTPError{
	http.StatusBadRequest:            ErrBadRequest,
	http.StatusForbidden:             ErrForbidden,
	http.StatusNotFound:              ErrNotFound,
	http.StatusMethodNotAllowed:      ErrMethodNotAllowed,
	http.StatusRequestTimeout:        ErrRequestTimeout,
	http.StatusConflict:              ErrConflict,
	http.StatusRequestEntityTooLarge: ErrRequestEntityTooLarge,
	http.StatusUnprocessableEntity:   ErrUnprocessableEntity,
	http.StatusTooManyRequests:       ErrTooManyRequests,
	499:                              ErrClientClosedRequest,
	http.StatusInternalServerError:   ErrInternalServerError,
	http.StatusServiceUnavailable:    ErrServiceUnavailable,
	http.StatusInsufficientStorage:   ErrInsufficientStorage,
}

// statusCode is implemented by errors that know their HTTP status.
type statusCode interface {
	StatusCode() int
}

// AsHTTPError converts any error to an HTTPError. Errors that are not
// HTTPError keep their status when they expose one and record the
// original message as the cause.
func AsHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	status := http.StatusInternalServerError
	var sc statusCode
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}

	base, ok := httpErrorsByStatus[status]
	if !ok {
		base = newError(status, "error")
		if base.Message == "" {
			base = ErrInternalServerError
		}
	}
	return base.WithError(err)
}

// committed reports whether the router's writer already sent headers.
func committed(w http.ResponseWriter) bool {
	ww, ok := w.(interface{ Written() bool })
	return ok && ww.Written()
}

// ErrorHandler renders errors as plain text.
func ErrorHandler[C handler.Context](ctx C, err error) {
	if committed(ctx.ResponseWriter()) {
		return
	}
	httpErr := AsHTTPError(err)
	Render(ctx, StringWithStatus(httpErr.Message, httpErr.Status))
}

// JSONErrorHandler renders errors as JSON.
func JSONErrorHandler[C handler.Context](ctx C, err error) {
	if committed(ctx.ResponseWriter()) {
		return
	}
	httpErr := AsHTTPError(err)
	Render(ctx, JSONWithStatus(httpErr, httpErr.Status))
}
