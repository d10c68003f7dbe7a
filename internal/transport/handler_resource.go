package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/staffdesk/internal/authz"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/internal/query"
	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/model"
)

const maxResourceBody = 1 << 20

// Resource actions checked against the session's permissions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// failureWriter answers failed resource calls. A backend 401 ends the local
// session too.
type failureWriter struct {
	sessions         *session.Manager
	cookie           *SessionCookie
	loginPath        string
	unauthorizedPath string
}

func (f *failureWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	ee := *ToEnvelope(err)
	ee.TraceID = observability.TraceIDFromContext(r.Context())

	switch {
	case model.IsStatus(err, http.StatusUnauthorized):
		if s := session.From(r.Context()); s != nil && s.ID() != "" {
			if lerr := f.sessions.Logout(r.Context(), s.ID()); lerr != nil {
				slog.Error("forced logout failed", "session_id", s.ID(), "error", lerr)
			}
			slog.Warn("backend rejected session token, logged out", "session_id", s.ID())
		}
		f.cookie.Clear(w)
		ee.Redirect = f.loginPath
	case model.IsStatus(err, http.StatusForbidden):
		ee.Redirect = f.unauthorizedPath
	}
	WriteError(w, &ee)
}

// mountResource registers the query, detail, create, update, delete and
// bulk-delete routes of res, each behind its permission check.
func mountResource(r chi.Router, g *authz.Gate, res query.Resource, fail *failureWriter) {
	name := res.Name()
	need := func(action string) func(http.Handler) http.Handler {
		return authz.Require(g, authz.NeedPermission(name, action))
	}

	r.Route("/api/"+name, func(r chi.Router) {
		r.With(need(ActionRead)).Post("/query", handleResourceCall(res.Query, fail))
		r.With(need(ActionRead)).Post("/detail", handleResourceCall(res.Detail, fail))
		r.With(need(ActionCreate)).Post("/create", handleResourceCall(res.Create, fail))
		r.With(need(ActionUpdate)).Post("/update", handleResourceCall(res.Update, fail))
		r.With(need(ActionDelete)).Post("/delete", handleResourceDelete(res.Delete, fail))
		r.With(need(ActionDelete)).Post("/bulk-delete", handleResourceDelete(res.BulkDelete, fail))
	})
}

func handleResourceCall(call func(context.Context, json.RawMessage) (any, error), fail *failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			WriteBadRequest(w, "request body too large or unreadable")
			return
		}
		out, err := call(r.Context(), body)
		if err != nil {
			fail.write(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func handleResourceDelete(call func(context.Context, json.RawMessage) error, fail *failureWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			WriteBadRequest(w, "request body too large or unreadable")
			return
		}
		if err := call(r.Context(), body); err != nil {
			fail.write(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxResourceBody))
}
