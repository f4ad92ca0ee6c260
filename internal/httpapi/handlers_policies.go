package httpapi

import (
	"net/http"

	"iamcore/internal/iam"
)

type createPolicyRequest struct {
	Name     string     `json:"name"`
	Hostname string     `json:"hostname"`
	Rules    []iam.Rule `json:"rules"`
}

type updatePolicyRequest struct {
	Rules []iam.Rule `json:"rules"`
}

func (a *API) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	policies, err := a.store.Policies().List(r.Context(), offset, limit)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (a *API) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := iam.Policy{Name: req.Name, Hostname: req.Hostname, Rules: req.Rules}
	created, err := a.store.Policies().Create(r.Context(), p)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	w.Header().Set("Location", "/policies/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParsePolicyIdentifier(r.PathValue("ident"))
	p, err := a.store.Policies().Get(r.Context(), ident)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParsePolicyIdentifier(r.PathValue("ident"))
	existing, err := a.store.Policies().Get(r.Context(), ident)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	var req updatePolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing.Rules = req.Rules
	updated, err := a.store.Policies().Update(r.Context(), existing)
	if err != nil {
		writeIAMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ident := iam.ParsePolicyIdentifier(r.PathValue("ident"))
	if err := a.store.Policies().Delete(r.Context(), ident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAttachUserPolicy(w http.ResponseWriter, r *http.Request) {
	uident := iam.ParseUserIdentifier(r.PathValue("ident"))
	pident := iam.ParsePolicyIdentifier(r.PathValue("pident"))
	if err := a.store.Attachments().CreateUserPolicy(r.Context(), uident, pident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDetachUserPolicy(w http.ResponseWriter, r *http.Request) {
	uident := iam.ParseUserIdentifier(r.PathValue("ident"))
	pident := iam.ParsePolicyIdentifier(r.PathValue("pident"))
	if err := a.store.Attachments().DeleteUserPolicy(r.Context(), uident, pident); err != nil {
		writeIAMError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
