package server

import (
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/photofx/photofx/internal/errors"
	"github.com/photofx/photofx/internal/server/handlers"
)

// HandleError writes err in the body shape of the route it failed on.
// Generation paths answer {"error": "<message>"}; everything else gets the
// structured envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if r != nil && isGeneratePath(r.URL.Path) {
		HandleFlatError(w, r, apperrors.EnsureEnvelope(err))
		return
	}
	apperrors.RespondWithError(w, r, err)
}

// HandleFlatError writes the flat generation body.
func HandleFlatError(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	apperrors.RespondFlat(w, r, envelope)
}

func isGeneratePath(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, p := range generatePaths {
		if path == p {
			return true
		}
	}
	return false
}

func installErrorResponders() {
	handlers.SetErrorResponders(handlers.ErrorResponders{
		Structured: HandleError,
		Flat:       HandleFlatError,
	})
}
