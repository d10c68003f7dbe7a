package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pitabwire/staffdesk/internal/backend"
	"github.com/pitabwire/staffdesk/internal/feature"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/internal/session"
	"github.com/pitabwire/staffdesk/model"
)

const maxLoginBody = 64 << 10

var loginSensitiveFields = []string{"password"}

func handleLogin(auth feature.Authenticator, mgr *session.Manager, cookie *SessionCookie) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&raw); err != nil {
			WriteBadRequest(w, "invalid login body")
			return
		}
		slog.Debug("login attempt", "body", observability.RedactBody(raw, loginSensitiveFields))

		req := model.LoginRequest{}
		req.Username, _ = raw["username"].(string)
		req.Password, _ = raw["password"].(string)
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			WriteBadRequest(w, "username and password are required")
			return
		}

		res, err := auth.Login(r.Context(), req)
		if err != nil {
			slog.Warn("backend login failed", "username", req.Username, "error", err)
			WriteError(w, ToEnvelope(err))
			return
		}

		if old := cookie.Read(r); old != "" {
			if err := mgr.Logout(r.Context(), old); err != nil {
				slog.Warn("purging previous session failed", "session_id", old, "error", err)
			}
		}

		sid := uuid.NewString()
		s, err := mgr.Login(r.Context(), sid, res)
		if err != nil {
			if errors.Is(err, session.ErrTokenExpired) {
				WriteError(w, model.NewUnauthorizedError(backend.HTTPErrorMessage(http.StatusUnauthorized)))
				return
			}
			slog.Error("session login failed", "username", req.Username, "error", err)
			WriteError(w, model.NewInternalError())
			return
		}
		if err := cookie.Write(w, sid); err != nil {
			slog.Error("writing session cookie failed", "error", err)
			WriteError(w, model.NewInternalError())
			return
		}

		slog.Info("user logged in", "username", req.Username, "session_id", sid)
		WriteJSON(w, http.StatusOK, s.Snapshot())
	}
}

// handleLogout ends the backend session on a best-effort basis, then purges
// the local session and clears the cookie. It always succeeds.
func handleLogout(auth feature.Authenticator, mgr *session.Manager, cookie *SessionCookie) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := cookie.Read(r)
		if sid != "" {
			s := mgr.Restore(r.Context(), sid)
			if s.IsAuthenticated() {
				ctx := session.WithSession(r.Context(), s)
				if err := auth.Logout(ctx); err != nil {
					slog.Warn("backend logout failed", "session_id", sid, "error", err)
				}
			}
			if err := mgr.Logout(r.Context(), sid); err != nil {
				slog.Error("purging session failed", "session_id", sid, "error", err)
			}
		}
		cookie.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleMe(loginPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := session.From(r.Context())
		if s != nil && s.Err() != nil {
			WriteError(w, model.NewInternalError())
			return
		}
		if s == nil || !s.IsAuthenticated() {
			ee := model.NewUnauthorizedError(backend.HTTPErrorMessage(http.StatusUnauthorized))
			ee.Redirect = loginPath
			WriteError(w, ee)
			return
		}
		WriteJSON(w, http.StatusOK, s.Snapshot())
	}
}
