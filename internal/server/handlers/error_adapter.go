package handlers

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/photofx/photofx/internal/errors"
)

// ErrorResponders are the writers handlers use for failure bodies. Structured
// writes the {"error": {...}} envelope; Flat writes the generation endpoint's
// {"error": "<message>"} body.
type ErrorResponders struct {
	Structured func(http.ResponseWriter, *http.Request, error)
	Flat       func(http.ResponseWriter, *http.Request, *errors.ErrorEnvelope)
}

// DefaultErrorResponders writes straight through internal/errors.
func DefaultErrorResponders() ErrorResponders {
	return ErrorResponders{
		Structured: apperrors.RespondWithError,
		Flat:       apperrors.RespondFlat,
	}
}

var responders = DefaultErrorResponders()

// SetErrorResponders lets the server install its own writers. Nil fields keep
// the defaults.
func SetErrorResponders(r ErrorResponders) {
	defaults := DefaultErrorResponders()
	if r.Structured == nil {
		r.Structured = defaults.Structured
	}
	if r.Flat == nil {
		r.Flat = defaults.Flat
	}
	responders = r
}

// ResetErrorResponders restores the defaults.
func ResetErrorResponders() {
	responders = DefaultErrorResponders()
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	responders.Structured(w, r, err)
}

func respondFlat(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	responders.Flat(w, r, envelope)
}
