package authz

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/model"
)

// DeniedError turns a denying decision into the error envelope returned to
// the UI: UNAUTHORIZED when not logged in, FORBIDDEN otherwise.
func DeniedError(d Decision) *model.ErrorEnvelope {
	var ee *model.ErrorEnvelope
	if d.Outcome == Unauthenticated {
		ee = model.NewUnauthorizedError(d.Notice)
	} else {
		ee = model.NewForbiddenError(d.Notice)
	}
	ee.Redirect = d.Redirect
	return ee
}

// Require returns middleware that lets the request through only when the
// session in its context satisfies req. The request path is the returnUrl
// for unauthenticated callers.
func Require(g *Gate, req Requirement) func(http.Handler) http.Handler {
	if err := req.Validate(); err != nil {
		panic("authz: invalid requirement: " + err.Error())
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p Principal
			if s := session.From(r.Context()); s != nil {
				p = s
			}
			d := g.CanActivate(r.Context(), p, req, r.URL.RequestURI())
			if !d.Allowed {
				writeDenied(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, d Decision) {
	status := http.StatusForbidden
	if d.Outcome == Unauthenticated {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Error *model.ErrorEnvelope `json:"error"`
	}{Error: DeniedError(d)})
}
