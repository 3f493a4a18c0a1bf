package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/auth"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

func registerUserRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	requiresAuth := app.requires(access.Requirement{})

	opts.Router.Handle("/v1/signup", opts.limited(rateLimitSignup, http.HandlerFunc(app.handleSignupV1))).Methods(http.MethodPost)
	opts.Router.Handle("/v1/users", opts.limited(rateLimitSignup, http.HandlerFunc(app.handleCreateUserV1))).Methods(http.MethodPost)
	opts.Router.Handle("/v1/user/giftaid", requiresAuth(http.HandlerFunc(app.handleUpdateGiftAidV1))).Methods(http.MethodPut)
}

type handleSignupV1Input struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	OrgName  string `json:"orgName" validate:"required,max=128"`
	OrgSlug  string `json:"orgSlug" validate:"required,slug"`
}

// handleSignupV1 registers a school: the organisation, its first
// admin and a session inside it
func (a *application) handleSignupV1(w http.ResponseWriter, r *http.Request) {
	var input handleSignupV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read signup", err)
		return
	}
	ctx := r.Context()
	if _, err := a.store.GetOrgBySlug(ctx, input.OrgSlug); err == nil {
		sendError(w, r, "failed to create organisation", ErrorOrgExists)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		sendError(w, r, "failed to create organisation", err)
		return
	}
	user, err := a.createUser(ctx, input.Name, input.Email, input.Password, nil)
	if err != nil {
		sendError(w, r, "failed to create user", err)
		return
	}
	org := &models.Org{
		Name:   strings.TrimSpace(input.OrgName),
		Slug:   input.OrgSlug,
		Status: models.OrgStatusActive,
	}
	if err := a.store.CreateOrg(ctx, org); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = ErrorOrgExists
		}
		sendError(w, r, "failed to create organisation", err)
		return
	}
	membership := &models.Membership{UserId: user.Id, OrgId: org.Id, Role: models.RoleAdmin, JoinedAt: time.Now().UTC()}
	if err := a.store.CreateMembership(ctx, membership); err != nil {
		sendError(w, r, "failed to add admin", err)
		return
	}
	a.writeAudit(r, &org.Id, &user.Id, audit.ActionOrgCreated, audit.TargetOrg, org.Id, map[string]any{"slug": org.Slug})
	a.writeAudit(r, &org.Id, &user.Id, audit.ActionUserSignedUp, audit.TargetUser, user.Id, map[string]any{"role": string(models.RoleAdmin)})
	log(r, common.LogLevelInfo, "org[%s] was created by user[%s]", org.Slug, user.Id)

	a.startSession(w, r, user, &models.UserOrg{
		Membership: *membership,
		OrgName:    org.Name,
		OrgSlug:    org.Slug,
		OrgStatus:  org.Status,
	}, http.StatusCreated)
}

type handleCreateUserV1Input struct {
	Name     string  `json:"name" validate:"required,max=128"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,password"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`

	// OrgSlug joins the new user to the organisation as a parent, this
	// is set when the user arrives from a claim link
	OrgSlug *string `json:"orgSlug" validate:"omitempty,slug"`
}

// handleCreateUserV1 registers a parent account
func (a *application) handleCreateUserV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateUserV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read user", err)
		return
	}
	ctx := r.Context()
	var org *models.Org
	if input.OrgSlug != nil {
		var err error
		if org, err = a.store.GetOrgBySlug(ctx, *input.OrgSlug); err != nil {
			sendError(w, r, "failed to find organisation", err)
			return
		}
		if !org.Status.IsOperational() {
			sendError(w, r, "failed to join organisation", access.ErrOrgInactive)
			return
		}
	}
	user, err := a.createUser(ctx, input.Name, input.Email, input.Password, input.Phone)
	if err != nil {
		sendError(w, r, "failed to create user", err)
		return
	}
	var activeOrg *models.UserOrg
	var orgId *string
	if org != nil {
		membership := &models.Membership{UserId: user.Id, OrgId: org.Id, Role: models.RoleParent, JoinedAt: time.Now().UTC()}
		if err := a.store.CreateMembership(ctx, membership); err != nil {
			sendError(w, r, "failed to join organisation", err)
			return
		}
		activeOrg = &models.UserOrg{Membership: *membership, OrgName: org.Name, OrgSlug: org.Slug, OrgStatus: org.Status}
		orgId = &org.Id
	}
	a.writeAudit(r, orgId, &user.Id, audit.ActionUserSignedUp, audit.TargetUser, user.Id, map[string]any{"role": string(models.RoleParent)})
	a.startSession(w, r, user, activeOrg, http.StatusCreated)
}

type handleUpdateGiftAidV1Input struct {
	Declared    bool    `json:"declared"`
	AddressLine string `json:"addressLine" validate:"max=256"`
	Postcode    string `json:"postcode" validate:"max=10"`
}

// handleUpdateGiftAidV1 records or withdraws the caller's Gift Aid
// declaration; a declaration needs the address HMRC asks for
func (a *application) handleUpdateGiftAidV1(w http.ResponseWriter, r *http.Request) {
	var input handleUpdateGiftAidV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read declaration", err)
		return
	}
	addressLine := strings.TrimSpace(input.AddressLine)
	postcode := strings.ToUpper(strings.TrimSpace(input.Postcode))
	if input.Declared && (addressLine == "" || postcode == "") {
		sendError(w, r, "failed to read declaration", fmt.Errorf("address and postcode are required: %w", ErrorInvalidInput))
		return
	}
	user, err := a.store.GetUser(r.Context(), principal(r).UserId)
	if err != nil {
		sendError(w, r, "failed to load user", err)
		return
	}
	user.GiftAidDeclared = input.Declared
	if input.Declared {
		user.AddressLine = &addressLine
		user.Postcode = &postcode
	}
	if err := a.store.UpdateUserGiftAid(r.Context(), *user); err != nil {
		sendError(w, r, "failed to save declaration", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", user)
}

func (a *application) createUser(ctx context.Context, name, email, password string, phone *string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := a.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrorEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		Phone:        phone,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrorEmailExists
		}
		return nil, err
	}
	return user, nil
}

// startSession issues a session for a freshly created user and writes
// it as the response
func (a *application) startSession(w http.ResponseWriter, r *http.Request, user *models.User, activeOrg *models.UserOrg, status int) {
	var activeOrgId *string
	orgs := []models.UserOrg{}
	if activeOrg != nil {
		activeOrgId = &activeOrg.OrgId
		orgs = append(orgs, *activeOrg)
	}
	token, session, err := a.sessions.Create(r.Context(), user.Id, activeOrgId)
	if err != nil {
		sendError(w, r, "failed to create session", err)
		return
	}
	a.setSessionCookie(w, token, session)
	common.SendHttpSuccessResponse(w, r, status, "ok", sessionOutput{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      *user,
		ActiveOrg: activeOrg,
		Orgs:      orgs,
	})
}
