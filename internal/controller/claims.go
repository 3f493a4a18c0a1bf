package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/claims"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

func registerClaimRoutes(opts RouteRegistrationOpts) {
	app := opts.App

	v1 := opts.Router.PathPrefix("/v1/claims").Subrouter()
	v1.Handle("/validate", opts.limited(rateLimitClaims, http.HandlerFunc(app.handleValidateClaimV1))).Methods(http.MethodPost)
	v1.Handle("", opts.limited(rateLimitClaims, app.requires(access.Requirement{})(http.HandlerFunc(app.handleCreateClaimV1)))).Methods(http.MethodPost)
}

type claimInput struct {
	OrgSlug string `json:"orgSlug" validate:"required,slug"`
	Code    string `json:"code" validate:"required,max=16"`
}

type claimClassView struct {
	Id       string               `json:"id"`
	Name     string               `json:"name"`
	Schedule models.ClassSchedule `json:"schedule"`
}

// claimView is what the claim page shows before a parent is linked
type claimView struct {
	StudentId   string           `json:"studentId"`
	FirstName   string           `json:"firstName"`
	LastName    string           `json:"lastName"`
	ClaimStatus string           `json:"claimStatus"`
	OrgName     string           `json:"orgName"`
	Classes     []claimClassView `json:"classes"`
}

// claimOrg resolves the organisation named on a claim link; unknown
// organisations look like an unknown code
func (a *application) claimOrg(ctx context.Context, slug string) (*models.Org, error) {
	org, err := a.store.GetOrgBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, claims.ErrInvalidCode
		}
		return nil, err
	}
	if !org.Status.IsOperational() {
		return nil, access.ErrOrgInactive
	}
	return org, nil
}

func (a *application) handleValidateClaimV1(w http.ResponseWriter, r *http.Request) {
	var input claimInput
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read claim", err)
		return
	}
	org, err := a.claimOrg(r.Context(), input.OrgSlug)
	if err != nil {
		sendError(w, r, "failed to validate claim code", err)
		return
	}
	validation, err := a.claims.Validate(r.Context(), org.Id, input.Code, time.Now().UTC())
	if err != nil {
		sendError(w, r, "failed to validate claim code", err)
		return
	}
	view := claimView{
		StudentId:   validation.Student.Id,
		FirstName:   validation.Student.FirstName,
		LastName:    validation.Student.LastName,
		ClaimStatus: string(validation.Student.ClaimStatus),
		OrgName:     org.Name,
		Classes:     []claimClassView{},
	}
	for _, class := range validation.Classes {
		view.Classes = append(view.Classes, claimClassView{Id: class.Id, Name: class.Name, Schedule: class.Schedule})
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", view)
}

// handleCreateClaimV1 submits a claim for the signed in user, an admin
// of the organisation then approves or rejects it
func (a *application) handleCreateClaimV1(w http.ResponseWriter, r *http.Request) {
	var input claimInput
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read claim", err)
		return
	}
	org, err := a.claimOrg(r.Context(), input.OrgSlug)
	if err != nil {
		sendError(w, r, "failed to submit claim", err)
		return
	}
	caller := principal(r)
	student, err := a.claims.Claim(r.Context(), org.Id, input.Code, caller.UserId, time.Now().UTC())
	if err != nil {
		sendError(w, r, "failed to submit claim", err)
		return
	}
	log(r, common.LogLevelInfo, "user[%s] claimed student[%s] in org[%s]", caller.UserId, student.Id, org.Id)
	common.SendHttpSuccessResponse(w, r, http.StatusAccepted, "ok", claimView{
		StudentId:   student.Id,
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		ClaimStatus: string(student.ClaimStatus),
		OrgName:     org.Name,
		Classes:     []claimClassView{},
	})
}
