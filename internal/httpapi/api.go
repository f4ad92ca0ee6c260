// Package httpapi wires the storage, authentication, and authorization
// layers into an HTTP server implementing the REST surface of spec §6.
package httpapi

import (
	"net/http"
	"time"

	"iamcore/internal/authproto"
	"iamcore/internal/events"
	"iamcore/internal/obs"
	"iamcore/internal/store"
)

// API is the HTTP layer. One instance owns the mux and everything a
// handler needs to reach the domain.
type API struct {
	mux        *http.ServeMux
	store      store.Store
	authCfg    authproto.Config
	sessionTTL time.Duration
	events     *events.Broadcaster
	version    string
}

// New builds the mux and registers every route. authCfg carries the header
// prefix and host the authentication handler checks requests against;
// sessionTTL is the default lifetime for sessions created without an
// explicit one.
func New(st store.Store, authCfg authproto.Config, sessionTTL time.Duration, bc *events.Broadcaster, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      st,
		authCfg:    authCfg,
		sessionTTL: sessionTTL,
		events:     bc,
		version:    version,
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.Handle("GET /metrics", obs.Handler())
	a.mux.HandleFunc("GET /events", a.handleEvents)

	a.mux.HandleFunc("GET /users", a.handleListUsers)
	a.mux.HandleFunc("POST /users", a.handleCreateUser)
	a.mux.HandleFunc("GET /users/{ident}", a.handleGetUser)
	a.mux.HandleFunc("DELETE /users/{ident}", a.handleDeleteUser)
	a.mux.HandleFunc("GET /users/{ident}/sessions", a.handleListSessions)
	a.mux.HandleFunc("POST /users/{ident}/sessions", a.handleCreateSession)
	a.mux.HandleFunc("GET /users/{ident}/sessions/{sid}", a.handleGetSession)
	a.mux.HandleFunc("DELETE /users/{ident}/sessions/{sid}", a.handleDeleteSession)
	a.mux.HandleFunc("PUT /users/{ident}/policies/{pident}", a.handleAttachUserPolicy)
	a.mux.HandleFunc("DELETE /users/{ident}/policies/{pident}", a.handleDetachUserPolicy)

	a.mux.HandleFunc("GET /groups", a.handleListGroups)
	a.mux.HandleFunc("POST /groups", a.handleCreateGroup)
	a.mux.HandleFunc("GET /groups/{ident}", a.handleGetGroup)
	a.mux.HandleFunc("DELETE /groups/{ident}", a.handleDeleteGroup)
	a.mux.HandleFunc("PUT /groups/{ident}/policies/{pident}", a.handleAttachGroupPolicy)
	a.mux.HandleFunc("DELETE /groups/{ident}/policies/{pident}", a.handleDetachGroupPolicy)

	a.mux.HandleFunc("GET /policies", a.handleListPolicies)
	a.mux.HandleFunc("POST /policies", a.handleCreatePolicy)
	a.mux.HandleFunc("GET /policies/{ident}", a.handleGetPolicy)
	a.mux.HandleFunc("PUT /policies/{ident}", a.handleUpdatePolicy)
	a.mux.HandleFunc("DELETE /policies/{ident}", a.handleDeletePolicy)

	a.mux.HandleFunc("PUT /memberships/{uid}/{gid}", a.handleCreateMembership)
	a.mux.HandleFunc("DELETE /memberships/{uid}/{gid}", a.handleDeleteMembership)

	return a
}

// Handler wraps the mux with the full middleware chain: metrics, request
// logging, security headers, body-size limiting, rate limiting, and
// finally authentication/authorization.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "iamcore",
		"version": a.version,
	})
}
