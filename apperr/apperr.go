// Package apperr holds the error taxonomy shared by the gateways and handlers.
package apperr

import (
	"errors"
	"net/http"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindNotFound
	KindMethodNotAllowed
	KindConflict
	KindStorage
	// KindEnrichmentLookup is absorbed by the enrichment service and never
	// reaches a client.
	KindEnrichmentLookup
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindEnrichmentLookup:
		return "enrichment_lookup"
	default:
		return "internal"
	}
}

// Error is a classified error. Msg is safe to show to clients; Err is not.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so sentinel values
// like store.ErrNotFound keep working through fmt.Errorf wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg && t.Op == "" && t.Err == nil
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

func Authentication(msg string) error { return &Error{Kind: KindAuthentication, Msg: msg} }

func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Msg: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

func MethodNotAllowed(method string) error {
	return &Error{Kind: KindMethodNotAllowed, Msg: "method " + method + " not allowed"}
}

func Conflict(msg string) error { return &Error{Kind: KindConflict, Msg: msg} }

func Storage(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Msg: "storage failure", Err: err}
}

func Lookup(op string, err error) error {
	return &Error{Kind: KindEnrichmentLookup, Op: op, Msg: "image lookup failed", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps err to the HTTP status a handler should answer with.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Server-side failures are
// reduced to a generic text.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || Status(err) >= http.StatusInternalServerError {
		return "Server error"
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}
