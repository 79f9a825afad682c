package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"animcentre.org/internal/audit"
	"animcentre.org/internal/auth"
	"animcentre.org/internal/ids"
	"animcentre.org/internal/obs"
	"animcentre.org/internal/stream"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			obs.ObserveLogin("locked")
			obs.ObserveLockout()
			_ = audit.LogEvent(r.Context(), "auth.lockout", map[string]any{
				"identifier": strings.TrimSpace(strings.ToLower(req.Username)),
				"ip":         clientIP(r),
			})
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.ObserveLogin("invalid")
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"identifier": strings.TrimSpace(strings.ToLower(req.Username)),
				"ip":         clientIP(r),
			})
		}
		handleAuthError(w, r, err)
		return
	}

	obs.ObserveLogin("ok")
	fields := map[string]any{
		"user_id":    session.User.ID,
		"username":   session.User.Username,
		"expires_at": session.ExpiresAt,
		"ip":         clientIP(r),
	}
	_ = audit.LogEvent(r.Context(), "auth.login", fields)
	a.publish(stream.Event{
		ID:     ids.New(),
		Kind:   "auth.login",
		Actor:  session.User.Username,
		Fields: fields,
	})

	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	raw, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="animcentre"`)
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.auth.Logout(r.Context(), raw); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.publish(stream.Event{
		ID:   ids.New(),
		Kind: "auth.logout",
	})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	perms := make([]string, 0, len(principal.Permissions))
	for name := range principal.Permissions {
		perms = append(perms, name)
	}
	sort.Strings(perms)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"roles":       principal.Roles,
		"permissions": perms,
	})
}
