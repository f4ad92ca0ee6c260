package httpapi

import (
	"net/http"
	"time"

	"iamcore/internal/authproto"
	"iamcore/internal/events"
	"iamcore/internal/iam"
	"iamcore/internal/obs"
)

var publicPaths = []string{
	"/healthz",
	"/metrics",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withAuth runs every non-public request through authentication and
// authorization before handing it to next (spec §4.4, §4.5). A rejected
// request gets only the error kind (401 AuthenticationFailed or 403
// NotAuthorized) and a fixed message; the reason a check failed (bad host,
// bad signature, unknown user, ...) goes to internal logs only.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authed, err := authproto.Authenticate(r.Context(), r, a.authCfg, a.store.Users())
		if err != nil {
			a.denyAuth(w, r, err, "")
			return
		}

		auth, err := authproto.Authorize(r.Context(), authed, a.authCfg.Host, r.Method, r.URL.Path, a.store.Sessions(), a.store.Policies())
		if err != nil {
			a.denyAuth(w, r, err, authed.User.ID.String())
			return
		}

		obs.RecordAuthDecision("allow")
		if a.events != nil {
			a.events.Publish(events.Decision{
				UserID:    auth.UserID,
				Method:    r.Method,
				Path:      r.URL.Path,
				Host:      a.authCfg.Host,
				Allowed:   true,
				Timestamp: time.Now(),
			})
		}

		ctx := authproto.ContextWithAuth(r.Context(), auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) denyAuth(w http.ResponseWriter, r *http.Request, err error, userIdent string) {
	outcome := "deny"
	reason := "authorization"
	status := http.StatusForbidden
	kind := "NotAuthorized"
	if iamErr, ok := err.(*iam.Error); ok && iamErr.Kind == iam.KindAuthenticationFailed {
		status = http.StatusUnauthorized
		kind = "AuthenticationFailed"
		reason = string(iamErr.Reason)
	}
	if iam.IsNotFound(err, "session") {
		status = http.StatusUnauthorized
		kind = "AuthenticationFailed"
		reason = "session"
	}

	obs.RecordAuthDecision(outcome)
	obs.LogAuthEvent(outcome, reason, userIdent, r.URL.Path)
	if a.events != nil {
		a.events.Publish(events.Decision{
			UserID:    userIdent,
			Method:    r.Method,
			Path:      r.URL.Path,
			Host:      a.authCfg.Host,
			Allowed:   false,
			Timestamp: time.Now(),
		})
	}

	writeJSON(w, status, map[string]any{
		"error":   kind,
		"message": "request could not be authenticated or authorized",
	})
}
