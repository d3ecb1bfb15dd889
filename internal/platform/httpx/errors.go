// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the HTTP layer. Domain packages translate their own
// sentinels into these with Translate before responding.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("unprocessable entity")
)

// FieldErrors is implemented by validation errors that name offending fields.
type FieldErrors interface {
	error
	FieldErrors() map[string]string
}

// Mapping pairs a domain sentinel with the HTTP sentinel it is reported as.
type Mapping struct {
	Domain error
	HTTP   error
}

// Translate returns the HTTP sentinel for the first mapping err matches, or err
// unchanged. Order matters: earlier mappings win.
func Translate(err error, mappings ...Mapping) error {
	for _, m := range mappings {
		if errors.Is(err, m.Domain) {
			return &translated{cause: err, kind: m.HTTP}
		}
	}
	return err
}

type translated struct {
	cause error
	kind  error
}

func (t *translated) Error() string { return t.cause.Error() }

func (t *translated) Unwrap() []error { return []error{t.kind, t.cause} }

// RespondError maps errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fe FieldErrors
	switch {
	case errors.As(err, &fe):
		ValidationProblem(w, err.Error(), fe.FieldErrors())
	case errors.Is(err, ErrValidation):
		ValidationProblem(w, err.Error(), nil)
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Precondition Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnprocessable):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
