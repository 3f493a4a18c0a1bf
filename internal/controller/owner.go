package controller

import (
	"net/http"

	"madrasah/internal/access"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/validate"

	"github.com/gorilla/mux"
)

func registerOwnerRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	requiresOwner := app.requires(access.Requirement{SuperAdmin: true})

	v1 := opts.Router.PathPrefix("/v1/owner/orgs").Subrouter()
	v1.Handle("", requiresOwner(http.HandlerFunc(app.handleListAllOrgsV1))).Methods(http.MethodGet)
	v1.Handle("/{orgId}/reactivate", requiresOwner(http.HandlerFunc(app.handleReactivateOrgV1))).Methods(http.MethodPost)
	v1.Handle("/{orgId}/deactivate", requiresOwner(http.HandlerFunc(app.handleDeactivateOrgV1))).Methods(http.MethodPost)
}

type ownerOrgView struct {
	models.Org
	ActiveStudents int `json:"activeStudents"`
}

func (a *application) handleListAllOrgsV1(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.store.ListOrgs(r.Context())
	if err != nil {
		sendError(w, r, "failed to list organisations", err)
		return
	}
	status := models.OrgStatus(r.URL.Query().Get("status"))
	output := make([]ownerOrgView, 0, len(orgs))
	for _, org := range orgs {
		if status != "" && org.Status != status {
			continue
		}
		count, err := a.store.CountActiveStudents(r.Context(), org.Id)
		if err != nil {
			sendError(w, r, "failed to count students", err)
			return
		}
		output = append(output, ownerOrgView{Org: org, ActiveStudents: count})
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}

func targetOrgId(r *http.Request) (string, error) {
	orgId := mux.Vars(r)["orgId"]
	if err := validate.Uuid(orgId); err != nil {
		return "", err
	}
	return orgId, nil
}

func (a *application) handleReactivateOrgV1(w http.ResponseWriter, r *http.Request) {
	orgId, err := targetOrgId(r)
	if err != nil {
		sendError(w, r, "failed to read organisation id", err)
		return
	}
	result, err := a.lifecycle.Reactivate(r.Context(), principal(r), orgId)
	if err != nil {
		sendError(w, r, "failed to reactivate organisation", err)
		return
	}
	log(r, common.LogLevelInfo, "org[%s] moved from %s to %s by user[%s]", result.Org.Id, result.Previous, result.Org.Status, principal(r).UserId)
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", result)
}

type handleDeactivateOrgV1Input struct {
	Reason string `json:"reason" validate:"required,max=512"`
}

func (a *application) handleDeactivateOrgV1(w http.ResponseWriter, r *http.Request) {
	orgId, err := targetOrgId(r)
	if err != nil {
		sendError(w, r, "failed to read organisation id", err)
		return
	}
	var input handleDeactivateOrgV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read reason", err)
		return
	}
	result, err := a.lifecycle.Deactivate(r.Context(), principal(r), orgId, input.Reason)
	if err != nil {
		sendError(w, r, "failed to deactivate organisation", err)
		return
	}
	log(r, common.LogLevelInfo, "org[%s] was deactivated by user[%s]", result.Org.Id, principal(r).UserId)
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", result)
}
