package httpapi

import (
	"net/http"

	"iamcore/internal/iam"
)

type createUserRequest struct {
	Email      string              `json:"email"`
	PublicKeys []iam.UserPublicKey `json:"public_keys"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	users, err := a.store.Users().List(r.Context(), offset, limit)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := iam.User{Email: req.Email, PublicKeys: req.PublicKeys}
	created, err := a.store.Users().Create(r.Context(), u)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	w.Header().Set("Location", "/users/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParseUserIdentifier(r.PathValue("ident"))
	u, err := a.store.Users().Get(r.Context(), ident)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParseUserIdentifier(r.PathValue("ident"))
	if err := a.store.Users().Delete(r.Context(), ident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
