package httpapi

import (
	"net/http"

	"iamcore/internal/iam"
)

func (a *API) handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	uident := iam.ParseUserIdentifier(r.PathValue("uid"))
	gident := iam.ParseGroupIdentifier(r.PathValue("gid"))
	if err := a.store.Memberships().Create(r.Context(), uident, gident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteMembership(w http.ResponseWriter, r *http.Request) {
	uident := iam.ParseUserIdentifier(r.PathValue("uid"))
	gident := iam.ParseGroupIdentifier(r.PathValue("gid"))
	if err := a.store.Memberships().Delete(r.Context(), uident, gident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
