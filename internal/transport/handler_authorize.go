package transport

import (
	"net/http"

	"github.com/pitabwire/staffdesk/internal/authz"
	"github.com/pitabwire/staffdesk/internal/session"
)

// handleAuthorize answers whether the current session may open the UI route
// given in the url query parameter.
func handleAuthorize(g *authz.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			WriteBadRequest(w, "url is required")
			return
		}

		var p authz.Principal
		if s := session.From(r.Context()); s != nil {
			p = s
		}
		WriteJSON(w, http.StatusOK, g.Authorize(r.Context(), p, target))
	}
}
