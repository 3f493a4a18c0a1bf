package controller

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const temporaryPasswordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

func registerOrgRoutes(opts RouteRegistrationOpts) {
	app := opts.App

	opts.Router.Handle(
		"/v1/orgs",
		app.requires(access.Requirement{})(http.HandlerFunc(app.handleListOrgsV1)),
	).Methods(http.MethodGet)

	v1 := opts.Router.PathPrefix("/v1/org").Subrouter()
	v1.Handle(
		"",
		app.requires(access.Requirement{ActiveOrg: true, AllowInactiveOrg: true})(http.HandlerFunc(app.handleGetOrgV1)),
	).Methods(http.MethodGet)
	v1.Handle(
		"/settings",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermOrgManage}})(http.HandlerFunc(app.handleUpdateOrgSettingsV1)),
	).Methods(http.MethodPatch)
	v1.Handle(
		"/members",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermMembersView}})(http.HandlerFunc(app.handleListOrgMembersV1)),
	).Methods(http.MethodGet)
	v1.Handle(
		"/members",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermMembersManage}})(http.HandlerFunc(app.handleCreateOrgMemberV1)),
	).Methods(http.MethodPost)
}

func (a *application) handleListOrgsV1(w http.ResponseWriter, r *http.Request) {
	memberships, err := a.store.ListUserOrgs(r.Context(), principal(r).UserId)
	if err != nil {
		sendError(w, r, "failed to list organisations", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", memberships)
}

type handleGetOrgV1Output struct {
	Org          models.Org           `json:"org"`
	Role         models.Role          `json:"role"`
	StaffSubrole *models.StaffSubrole `json:"staffSubrole,omitempty"`
	Permissions  []access.Permission  `json:"permissions"`
}

// handleGetOrgV1 stays reachable for inactive organisations so that
// members can see why the school is unavailable
func (a *application) handleGetOrgV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	org, err := a.store.GetOrg(r.Context(), caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}
	if !caller.HasPermission(access.PermOrgManage) {
		org.StripeCustomerId = nil
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", handleGetOrgV1Output{
		Org:          *org,
		Role:         caller.Role,
		StaffSubrole: caller.StaffSubrole,
		Permissions:  caller.Permissions(),
	})
}

type handleUpdateOrgSettingsV1Input struct {
	BillingDay             *int                   `json:"billingDay" validate:"omitempty,min=1,max=31"`
	FeeDueDay              *int                   `json:"feeDueDay" validate:"omitempty,min=1,max=31"`
	AcceptedPaymentMethods []models.PaymentMethod `json:"acceptedPaymentMethods" validate:"omitempty,dive,oneof=CARD CASH BANK_TRANSFER"`
	Timezone               *string                `json:"timezone"`
}

// handleUpdateOrgSettingsV1 merges the provided fields into the typed
// settings of the organisation
func (a *application) handleUpdateOrgSettingsV1(w http.ResponseWriter, r *http.Request) {
	var input handleUpdateOrgSettingsV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read settings", err)
		return
	}
	if input.Timezone != nil && *input.Timezone != "" {
		if _, err := time.LoadLocation(*input.Timezone); err != nil {
			sendError(w, r, "failed to read settings", fmt.Errorf("timezone[%s] is unknown: %w", *input.Timezone, ErrorInvalidInput))
			return
		}
	}
	caller := principal(r)
	org, err := a.store.GetOrg(r.Context(), caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}
	settings := org.Settings
	changed := []string{}
	if input.BillingDay != nil {
		settings.BillingDay = input.BillingDay
		changed = append(changed, "billingDay")
	}
	if input.FeeDueDay != nil {
		settings.FeeDueDay = input.FeeDueDay
		changed = append(changed, "feeDueDay")
	}
	if input.AcceptedPaymentMethods != nil {
		settings.AcceptedPaymentMethods = input.AcceptedPaymentMethods
		changed = append(changed, "acceptedPaymentMethods")
	}
	if input.Timezone != nil {
		settings.Timezone = *input.Timezone
		changed = append(changed, "timezone")
	}
	if err := a.store.UpdateOrgSettings(r.Context(), org.Id, settings); err != nil {
		sendError(w, r, "failed to update settings", err)
		return
	}
	a.orgAudit(r, audit.ActionOrgSettingsUpdated, audit.TargetOrg, org.Id, map[string]any{"fields": changed})
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", settings)
}

func (a *application) handleListOrgMembersV1(w http.ResponseWriter, r *http.Request) {
	var role *models.Role
	if roleFilter := r.URL.Query().Get("role"); roleFilter != "" {
		role = models.Ptr(models.Role(strings.ToUpper(roleFilter)))
	}
	members, err := a.store.ListOrgMembers(r.Context(), principal(r).OrgId, role)
	if err != nil {
		sendError(w, r, "failed to list members", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", members)
}

type handleCreateOrgMemberV1Input struct {
	Email        string               `json:"email" validate:"required,email"`
	Name         string               `json:"name" validate:"max=128"`
	Role         models.Role          `json:"role" validate:"required,oneof=ADMIN STAFF PARENT"`
	StaffSubrole *models.StaffSubrole `json:"staffSubrole"`
}

// handleCreateOrgMemberV1 adds a user to the organisation, creating the
// account with a temporary password when the email is new
func (a *application) handleCreateOrgMemberV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateOrgMemberV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read member", err)
		return
	}
	if input.Role != models.RoleStaff {
		input.StaffSubrole = nil
	} else if input.StaffSubrole == nil || !slices.Contains(models.StaffSubroles, *input.StaffSubrole) {
		sendError(w, r, "failed to read member", fmt.Errorf("staff members need a valid staffSubrole: %w", ErrorInvalidInput))
		return
	}
	ctx := r.Context()
	caller := principal(r)
	org, err := a.store.GetOrg(ctx, caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}

	temporaryPassword := ""
	user, err := a.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if errors.Is(err, store.ErrNotFound) {
		if input.Name == "" {
			sendError(w, r, "failed to read member", fmt.Errorf("name is required for new users: %w", ErrorInvalidInput))
			return
		}
		if temporaryPassword, err = common.GenerateRandomStringFrom(temporaryPasswordCharset, 16); err != nil {
			sendError(w, r, "failed to create user", err)
			return
		}
		user, err = a.createUser(ctx, input.Name, input.Email, temporaryPassword, nil)
	}
	if err != nil {
		sendError(w, r, "failed to create user", err)
		return
	}

	if _, err := a.store.GetMembership(ctx, user.Id, org.Id); err == nil {
		sendError(w, r, "failed to add member", ErrorMemberExists)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		sendError(w, r, "failed to add member", err)
		return
	}
	membership := &models.Membership{
		UserId:       user.Id,
		OrgId:        org.Id,
		Role:         input.Role,
		StaffSubrole: input.StaffSubrole,
		JoinedAt:     time.Now().UTC(),
	}
	if err := a.store.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = ErrorMemberExists
		}
		sendError(w, r, "failed to add member", err)
		return
	}
	a.orgAudit(r, audit.ActionMemberAdded, audit.TargetUser, user.Id, map[string]any{
		"role":       string(input.Role),
		"newAccount": temporaryPassword != "",
	})
	a.sendInvite(r, org, user, input.Role, temporaryPassword)

	common.SendHttpSuccessResponse(w, r, http.StatusCreated, "ok", models.OrgMember{
		Membership: *membership,
		Email:      user.Email,
		Name:       user.Name,
	})
}

// sendInvite emails the new member; failures are logged since the
// membership already exists
func (a *application) sendInvite(r *http.Request, org *models.Org, user *models.User, role models.Role, temporaryPassword string) {
	html, err := email.RenderMemberInvite(email.MemberInviteData{
		OrgName:           org.Name,
		Role:              string(role),
		LoginUrl:          a.publicUrl.JoinPath("login").String(),
		TemporaryPassword: temporaryPassword,
	})
	if err != nil {
		log(r, common.LogLevelError, "failed to render invite for user[%s]: %s", user.Id, err)
		return
	}
	message := email.Message{
		To:      []email.User{{Address: user.Email, Name: user.Name}},
		Subject: fmt.Sprintf("You have been added to %s", org.Name),
		Html:    html,
	}
	if err := a.notifier.Email(r.Context(), message); err != nil {
		log(r, common.LogLevelError, "failed to send invite to user[%s]: %s", user.Id, err)
	}
}
