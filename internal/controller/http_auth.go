package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"madrasah/internal/access"
	"madrasah/internal/auth"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const sessionRequestContext common.HttpContextKey = "controller-session"

// bearerToken reads the session token from the session cookie or an
// Authorization header
func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authorizationHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authorizationHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// resolvePrincipal loads the session and user behind the request token
// and the caller's standing in the session's active organisation
func (a *application) resolvePrincipal(ctx context.Context, token string) (*access.Principal, *auth.Session, error) {
	if token == "" {
		return nil, nil, access.ErrUnauthenticated
	}
	session, err := a.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.store.GetUser(ctx, session.UserId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, access.ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to load user[%s]: %w", session.UserId, err)
	}
	principal := &access.Principal{
		UserId:       user.Id,
		Email:        user.Email,
		IsSuperAdmin: user.IsSuperAdmin,
	}
	if session.ActiveOrgId == nil {
		return principal, session, nil
	}
	org, err := a.store.GetOrg(ctx, *session.ActiveOrgId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return principal, session, nil
		}
		return nil, nil, fmt.Errorf("failed to load org[%s]: %w", *session.ActiveOrgId, err)
	}
	membership, err := a.store.GetMembership(ctx, user.Id, org.Id)
	switch {
	case err == nil:
		principal.Role = membership.Role
		principal.StaffSubrole = membership.StaffSubrole
	case errors.Is(err, store.ErrNotFound) && user.IsSuperAdmin:
		principal.Role = models.RoleOwner
	case errors.Is(err, store.ErrNotFound):
		// membership was removed after the session picked the org
		return principal, session, nil
	default:
		return nil, nil, fmt.Errorf("failed to load membership of user[%s] in org[%s]: %w", user.Id, org.Id, err)
	}
	principal.OrgId = org.Id
	principal.OrgStatus = org.Status
	return principal, session, nil
}

// requires returns the single authorization middleware used by every
// protected route: it resolves the principal and checks it against req
func (a *application) requires(req access.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.serviceLogs <- common.ServiceLogf(common.LogLevelTrace, "auth middleware is executing")
			principal, session, err := a.resolvePrincipal(r.Context(), bearerToken(r))
			if err != nil {
				sendError(w, r, "failed to authenticate", err)
				return
			}
			if err := access.Authorize(principal, req); err != nil {
				log(r, common.LogLevelInfo, "user[%s] was denied %s %s: %s", principal.UserId, r.Method, r.URL.Path, err)
				sendError(w, r, "not allowed", err)
				return
			}
			log(r, common.LogLevelDebug, "processing request from user[%s] in org[%s]", principal.UserId, principal.OrgId)
			ctx := access.WithPrincipal(r.Context(), principal)
			ctx = context.WithValue(ctx, sessionRequestContext, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentSession(r *http.Request) *auth.Session {
	session, _ := r.Context().Value(sessionRequestContext).(*auth.Session)
	return session
}

func (a *application) setSessionCookie(w http.ResponseWriter, token string, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *application) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
