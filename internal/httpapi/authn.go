package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"animcentre.org/internal/auth"
	"animcentre.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Logout is public so that a well-formed but already-expired token can
// still be logged out as a no-op; the handler reads the bearer itself.
var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// requireMode selects how a set of required permissions combines.
type requireMode int

const (
	requireAll requireMode = iota
	requireAny
)

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="animcentre"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.auth.VerifyToken(r.Context(), raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="animcentre"`)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				obs.ObserveTokenVerification("expired")
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, auth.ErrInvalidToken):
				obs.ObserveTokenVerification("invalid")
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				obs.ObserveTokenVerification("error")
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		obs.ObserveTokenVerification("ok")

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermissions authorizes the request principal against the required
// permissions and writes the failure response itself. With requireAny one
// match suffices; with requireAll every permission must hold. The 403 body
// names the permissions the principal lacks.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, mode requireMode, required ...string) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="animcentre"`)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}

	allowed := false
	switch mode {
	case requireAny:
		allowed = principal.HasAny(required...)
	default:
		allowed = principal.HasAll(required...)
	}
	if allowed {
		return true
	}

	payload := map[string]any{
		"error":   "insufficient permissions",
		"missing": principal.Missing(required...),
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusForbidden, payload)
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
