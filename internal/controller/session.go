package controller

import (
	"errors"
	"net/http"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/auth"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

func registerSessionRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	requiresAuth := app.requires(access.Requirement{})

	v1 := opts.Router.PathPrefix("/v1/session").Subrouter()

	v1.Handle("", opts.limited(rateLimitAuth, http.HandlerFunc(app.handleCreateSessionV1))).Methods(http.MethodPost)
	v1.Handle("", requiresAuth(http.HandlerFunc(app.handleGetSessionV1))).Methods(http.MethodGet)
	v1.Handle("", requiresAuth(http.HandlerFunc(app.handleDeleteSessionV1))).Methods(http.MethodDelete)
	v1.Handle("/org", requiresAuth(http.HandlerFunc(app.handleUpdateSessionOrgV1))).Methods(http.MethodPut)
}

type handleCreateSessionV1Input struct {
	// Email is the user's email address
	Email string `json:"email" validate:"required,email"`

	// Password is the user's password
	Password string `json:"password" validate:"required"`

	// OrgSlug optionally selects the organisation to sign in to
	OrgSlug *string `json:"orgSlug"`
}

type sessionOutput struct {
	Token     string           `json:"token,omitempty"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      models.User      `json:"user"`
	ActiveOrg *models.UserOrg  `json:"activeOrg"`
	Orgs      []models.UserOrg `json:"orgs"`
}

func (a *application) handleCreateSessionV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateSessionV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read credentials", err)
		return
	}
	ctx := r.Context()
	user, err := a.store.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// hash anyway so that unknown emails take as long as known ones
			auth.ValidatePassword(input.Password, dummyPasswordHash)
			sendError(w, r, "failed to create session", ErrorInvalidCredentials)
			return
		}
		sendError(w, r, "failed to create session", err)
		return
	}
	if !auth.ValidatePassword(input.Password, user.PasswordHash) {
		log(r, common.LogLevelInfo, "failed login for user[%s] from %s", user.Id, common.ClientIp(r))
		sendError(w, r, "failed to create session", ErrorInvalidCredentials)
		return
	}

	memberships, err := a.store.ListUserOrgs(ctx, user.Id)
	if err != nil {
		sendError(w, r, "failed to list organisations", err)
		return
	}
	var requested *models.Org
	if input.OrgSlug != nil && *input.OrgSlug != "" {
		if requested, err = a.store.GetOrgBySlug(ctx, *input.OrgSlug); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = access.ErrNotMember
			}
			sendError(w, r, "failed to select organisation", err)
			return
		}
	}
	var activeOrgId *string
	activeOrg, err := access.ResolveActiveOrg(*user, memberships, requested)
	switch {
	case err == nil:
		activeOrgId = &activeOrg.OrgId
	case errors.Is(err, access.ErrNoActiveOrg):
		activeOrg = nil
	default:
		sendError(w, r, "failed to select organisation", err)
		return
	}

	token, session, err := a.sessions.Create(ctx, user.Id, activeOrgId)
	if err != nil {
		sendError(w, r, "failed to create session", err)
		return
	}
	a.setSessionCookie(w, token, session)
	a.writeAudit(r, activeOrgId, &user.Id, audit.ActionUserLoggedIn, audit.TargetUser, user.Id, nil)
	log(r, common.LogLevelDebug, "issued session[%s] to user[%s]", session.Id, user.Id)

	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", sessionOutput{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      *user,
		ActiveOrg: activeOrg,
		Orgs:      memberships,
	})
}

func (a *application) handleGetSessionV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	session := currentSession(r)
	user, err := a.store.GetUser(r.Context(), caller.UserId)
	if err != nil {
		sendError(w, r, "failed to load user", err)
		return
	}
	memberships, err := a.store.ListUserOrgs(r.Context(), caller.UserId)
	if err != nil {
		sendError(w, r, "failed to list organisations", err)
		return
	}
	output := sessionOutput{ExpiresAt: session.ExpiresAt, User: *user, Orgs: memberships}
	if caller.HasActiveOrg() {
		for _, membership := range memberships {
			if membership.OrgId == caller.OrgId {
				active := membership
				output.ActiveOrg = &active
			}
		}
		if output.ActiveOrg == nil {
			if org, err := a.store.GetOrg(r.Context(), caller.OrgId); err == nil {
				output.ActiveOrg = &models.UserOrg{
					Membership: models.Membership{UserId: caller.UserId, OrgId: org.Id, Role: caller.Role},
					OrgName:    org.Name,
					OrgSlug:    org.Slug,
					OrgStatus:  org.Status,
				}
			}
		}
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}

func (a *application) handleDeleteSessionV1(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)
	if err := a.sessions.Revoke(r.Context(), session.Id); err != nil {
		sendError(w, r, "failed to end session", err)
		return
	}
	a.clearSessionCookie(w)
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok")
}

type handleUpdateSessionOrgV1Input struct {
	OrgId string `json:"orgId" validate:"required"`
}

// handleUpdateSessionOrgV1 switches the active organisation of the
// session; the caller must be a member unless they are a platform owner
func (a *application) handleUpdateSessionOrgV1(w http.ResponseWriter, r *http.Request) {
	var input handleUpdateSessionOrgV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read organisation", err)
		return
	}
	ctx := r.Context()
	caller := principal(r)
	org, err := a.store.GetOrg(ctx, input.OrgId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = access.ErrNotMember
		}
		sendError(w, r, "failed to switch organisation", err)
		return
	}
	user, err := a.store.GetUser(ctx, caller.UserId)
	if err != nil {
		sendError(w, r, "failed to load user", err)
		return
	}
	memberships, err := a.store.ListUserOrgs(ctx, caller.UserId)
	if err != nil {
		sendError(w, r, "failed to list organisations", err)
		return
	}
	activeOrg, err := access.ResolveActiveOrg(*user, memberships, org)
	if err != nil {
		sendError(w, r, "failed to switch organisation", err)
		return
	}
	if err := a.sessions.SetActiveOrg(ctx, currentSession(r), activeOrg.OrgId); err != nil {
		sendError(w, r, "failed to switch organisation", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", activeOrg)
}
