package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

type createSessionRequest struct {
	TTL string `json:"ttl"`
}

// sessionCreated is the one response shape that carries the bearer token;
// every other view of a session omits it (iam.Session tags Token json:"-").
type sessionCreated struct {
	iam.Session
	Token string `json:"token"`
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, err := a.resolveUserID(r, r.PathValue("ident"))
	if err != nil {
		writeIAMError(w, err)
		return
	}
	offset, limit := pagination(r)
	sessions, err := a.store.Sessions().List(r.Context(), uid, offset, limit)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	uid, err := a.resolveUserID(r, r.PathValue("ident"))
	if err != nil {
		writeIAMError(w, err)
		return
	}

	ttl := a.sessionTTL
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TTL != "" {
			parsed, err := time.ParseDuration(req.TTL)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ttl must be a valid duration")
				return
			}
			ttl = parsed
		}
	}

	session, err := a.store.Sessions().Create(r.Context(), uid, ttl)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	w.Header().Set("Location", "/users/"+uid.String()+"/sessions/"+session.ID.String())
	writeJSON(w, http.StatusCreated, sessionCreated{Session: session, Token: session.Token})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uid, err := a.resolveUserID(r, r.PathValue("ident"))
	if err != nil {
		writeIAMError(w, err)
		return
	}
	sid, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		writeIAMError(w, iam.NotFound("session", r.PathValue("sid")))
		return
	}
	session, err := a.store.Sessions().GetByID(r.Context(), uid, sid)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, err := a.resolveUserID(r, r.PathValue("ident"))
	if err != nil {
		writeIAMError(w, err)
		return
	}
	sid, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		writeIAMError(w, iam.NotFound("session", r.PathValue("sid")))
		return
	}
	if err := a.store.Sessions().Delete(r.Context(), uid, sid); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveUserID turns a path's user identifier segment into a UUID,
// sessions being keyed by UUID rather than by iam.UserIdentifier.
func (a *API) resolveUserID(r *http.Request, ident string) (uuid.UUID, error) {
	return a.store.Users().ResolveID(r.Context(), iam.ParseUserIdentifier(ident))
}
