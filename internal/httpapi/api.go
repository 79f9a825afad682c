// Package httpapi is the HTTP boundary of the animation centre service:
// authentication endpoints, the RBAC admin surface, health probes and the
// live audit event stream.
package httpapi

import (
	"context"
	"net/http"

	"animcentre.org/internal/auth"
	"animcentre.org/internal/obs"
	"animcentre.org/internal/stream"
)

// Pinger is anything that can report a dependency as reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe verifies the service's backing dependencies for /readyz.
type ReadyProbe struct {
	DB     Pinger
	Ledger Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if rp.Ledger != nil {
		if err := rp.Ledger.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Options configures the API surface.
type Options struct {
	Auth       *auth.Service
	Stream     *stream.Stream
	ReadyProbe ReadyProbe
	Version    string

	// Login rate limiting, tokens per second per client IP.
	LoginRate  float64
	LoginBurst int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       opts.Auth,
		stream:     opts.Stream,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	loginRate := opts.LoginRate
	if loginRate <= 0 {
		loginRate = 5
	}
	loginBurst := opts.LoginBurst
	if loginBurst <= 0 {
		loginBurst = 10
	}
	a.mux.Handle("/v1/auth/login", RateLimit(
		http.HandlerFunc(a.handleLogin), newIPLimiter(loginRate, loginBurst)))
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/v1/events", a.handleEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the route table.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "animcentre-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) publish(evt stream.Event) {
	if a.stream == nil {
		return
	}
	a.stream.Publish(evt)
}
