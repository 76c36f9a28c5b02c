// Package apierr defines the API error taxonomy: a small set of tagged
// errors, each carrying the HTTP status its handler should translate to.
// Routes return one of these via c.Error(); Middleware maps the first one
// found to the response.
package apierr

import "net/http"

// Kind discriminates which taxonomy bucket an Error falls into.
type Kind int

const (
	KindBadRequest Kind = iota
	KindAuthRequired
	KindForbidden
	KindNotPresent
	KindConflict
	KindSourceError
	KindDriverError
	KindInternal
)

// Error is a taxonomy-tagged error carrying the message a client sees.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Status maps e's Kind to its HTTP status. NotPresent maps to 400, not
// 404: clients treat an expired session the same as any other bad
// reference in the request.
func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest, KindNotPresent:
		return http.StatusBadRequest
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindSourceError, KindDriverError, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest builds a missing/unparsable-field error.
func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// AuthRequired builds a failed-password error.
func AuthRequired(msg string) *Error { return &Error{Kind: KindAuthRequired, Message: msg} }

// Forbidden builds a failed-IP-check error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// NotPresent builds a "session/player/track not found" error.
func NotPresent(msg string) *Error { return &Error{Kind: KindNotPresent, Message: msg} }

// Conflict builds a resume-on-attached-session error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// SourceError builds an external-source fetch/decode failure error.
func SourceError(msg string) *Error { return &Error{Kind: KindSourceError, Message: msg} }

// DriverError builds a voice connect/disconnect failure error.
func DriverError(msg string) *Error { return &Error{Kind: KindDriverError, Message: msg} }

// Internal builds a serialization-failure / panic-recovery error.
func Internal(msg string) *Error { return &Error{Kind: KindInternal, Message: msg} }
