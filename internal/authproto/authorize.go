package authproto

import (
	"context"

	"iamcore/internal/iam"
	"iamcore/internal/store"
)

// Authorize implements spec §4.5: it optionally resolves a session, loads
// the caller's aggregated policy set for host, and evaluates it against
// the request's (action, resource).
func Authorize(ctx context.Context, authed Authenticated, host, method, path string, sessions store.SessionStore, policies store.PolicyStore) (Auth, error) {
	var session *iam.Session
	if authed.SessionToken != "" {
		sess, err := sessions.GetByToken(ctx, authed.User.ID, authed.SessionToken)
		if err != nil {
			if iam.IsNotFound(err, "session") {
				return Auth{}, iam.NotFound("session", authed.SessionToken)
			}
			return Auth{}, iam.Internal(err)
		}
		session = &sess
	}

	pols, err := policies.ListForUser(ctx, authed.User.ID, host)
	if err != nil {
		return Auth{}, iam.Internal(err)
	}

	action := iam.ActionForMethod(method)
	if !iam.Evaluate(action, path, pols) {
		return Auth{}, iam.NotAuthorized()
	}

	return Auth{UserID: authed.User.ID.String(), Policies: pols, Session: session}, nil
}
