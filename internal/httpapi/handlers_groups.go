package httpapi

import (
	"net/http"

	"iamcore/internal/iam"
)

type createGroupRequest struct {
	Name string `json:"name"`
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	groups, err := a.store.Groups().List(r.Context(), offset, limit)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.store.Groups().Create(r.Context(), iam.Group{Name: req.Name})
	if err != nil {
		writeIAMError(w, err)
		return
	}
	w.Header().Set("Location", "/groups/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParseGroupIdentifier(r.PathValue("ident"))
	g, err := a.store.Groups().Get(r.Context(), ident)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParseGroupIdentifier(r.PathValue("ident"))
	if err := a.store.Groups().Delete(r.Context(), ident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAttachGroupPolicy(w http.ResponseWriter, r *http.Request) {
	gident := iam.ParseGroupIdentifier(r.PathValue("ident"))
	pident := iam.ParsePolicyIdentifier(r.PathValue("pident"))
	if err := a.store.Attachments().CreateGroupPolicy(r.Context(), gident, pident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDetachGroupPolicy(w http.ResponseWriter, r *http.Request) {
	gident := iam.ParseGroupIdentifier(r.PathValue("ident"))
	pident := iam.ParsePolicyIdentifier(r.PathValue("pident"))
	if err := a.store.Attachments().DeleteGroupPolicy(r.Context(), gident, pident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
