// Package access decides who may do what inside which organisation
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"madrasah/internal/models"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNoActiveOrg     = errors.New("no_active_org")
	ErrNotMember       = errors.New("not_a_member")

	// ErrOrgInactive is returned for tenant routes of SUSPENDED and
	// DEACTIVATED organisations
	ErrOrgInactive = errors.New("org_inactive")
)

// Permission represents an authorised action within an organisation
type Permission string

const (
	PermOrgManage          Permission = "org:manage"
	PermMembersView        Permission = "members:view"
	PermMembersManage      Permission = "members:manage"
	PermStudentsView       Permission = "students:view"
	PermStudentsManage     Permission = "students:manage"
	PermClaimsManage       Permission = "claims:manage"
	PermClassesView        Permission = "classes:view"
	PermClassesManage      Permission = "classes:manage"
	PermAttendanceRecord   Permission = "attendance:record"
	PermPaymentsView       Permission = "payments:view"
	PermPaymentsManage     Permission = "payments:manage"
	PermInvoicesManage     Permission = "invoices:manage"
	PermMessagesSend       Permission = "messages:send"
	PermGiftAidExport      Permission = "giftaid:export"
	PermAuditView          Permission = "audit:view"
	PermCalendarView       Permission = "calendar:view"
	PermOwnChildrenView    Permission = "children:view_own"
	PermOwnPaymentsView    Permission = "payments:view_own"
	PermStudentsClaim      Permission = "students:claim"
	PermPlatformOrgsManage Permission = "platform:orgs_manage"
)

var tenantPermissions = []Permission{
	PermOrgManage,
	PermMembersView,
	PermMembersManage,
	PermStudentsView,
	PermStudentsManage,
	PermClaimsManage,
	PermClassesView,
	PermClassesManage,
	PermAttendanceRecord,
	PermPaymentsView,
	PermPaymentsManage,
	PermInvoicesManage,
	PermMessagesSend,
	PermGiftAidExport,
	PermAuditView,
	PermCalendarView,
}

// RolePermissions maps organisation roles to allowed permissions; STAFF
// permissions come from StaffSubrolePermissions instead
var RolePermissions = map[models.Role][]Permission{
	models.RoleOwner: append(append([]Permission{}, tenantPermissions...), PermPlatformOrgsManage),
	models.RoleAdmin: tenantPermissions,
	models.RoleParent: {
		PermOwnChildrenView,
		PermOwnPaymentsView,
		PermStudentsClaim,
		PermCalendarView,
	},
}

// StaffSubrolePermissions narrows STAFF members to the sections their
// subrole covers
var StaffSubrolePermissions = map[models.StaffSubrole][]Permission{
	models.StaffSubroleTeacher: {
		PermStudentsView,
		PermClassesView,
		PermAttendanceRecord,
		PermMessagesSend,
		PermCalendarView,
	},
	models.StaffSubroleFinanceOfficer: {
		PermStudentsView,
		PermClassesView,
		PermPaymentsView,
		PermPaymentsManage,
		PermInvoicesManage,
		PermGiftAidExport,
		PermCalendarView,
	},
	models.StaffSubroleAdmin: {
		PermMembersView,
		PermStudentsView,
		PermStudentsManage,
		PermClaimsManage,
		PermClassesView,
		PermClassesManage,
		PermAttendanceRecord,
		PermPaymentsView,
		PermMessagesSend,
		PermCalendarView,
	},
}

// Principal is the authenticated caller resolved from a session
type Principal struct {
	UserId       string
	Email        string
	IsSuperAdmin bool

	// OrgId is the active organisation; it only ever comes from the
	// signed session
	OrgId        string
	OrgStatus    models.OrgStatus
	Role         models.Role
	StaffSubrole *models.StaffSubrole
}

// HasActiveOrg returns true when the principal is acting inside an org
func (p Principal) HasActiveOrg() bool {
	return p.OrgId != ""
}

// Permissions lists what the principal may do in the active org
func (p Principal) Permissions() []Permission {
	if !p.HasActiveOrg() {
		if p.IsSuperAdmin {
			return []Permission{PermPlatformOrgsManage}
		}
		return nil
	}
	if p.Role == models.RoleStaff {
		if p.StaffSubrole == nil {
			return nil
		}
		return StaffSubrolePermissions[*p.StaffSubrole]
	}
	perms := RolePermissions[p.Role]
	if p.IsSuperAdmin && p.Role != models.RoleOwner {
		perms = append(append([]Permission{}, perms...), PermPlatformOrgsManage)
	}
	return perms
}

// HasPermission checks if the principal holds a specific permission
func (p Principal) HasPermission(perm Permission) bool {
	return slices.Contains(p.Permissions(), perm)
}

// Requirement describes what a route needs from its caller
type Requirement struct {
	// Roles is an allow-list; empty allows every role
	Roles []models.Role

	// Permissions must all be held; for STAFF they are resolved from
	// the subrole mapping
	Permissions []Permission

	// ActiveOrg requires an active organisation in the session
	ActiveOrg bool

	// AllowInactiveOrg lets SUSPENDED and DEACTIVATED organisations
	// through, used by session and org info routes
	AllowInactiveOrg bool

	// SuperAdmin restricts the route to platform owners
	SuperAdmin bool
}

// Authorize returns nil when the principal satisfies the requirement,
// ErrUnauthenticated without a principal, and an error wrapping
// ErrForbidden otherwise
func Authorize(principal *Principal, req Requirement) error {
	if principal == nil || principal.UserId == "" {
		return ErrUnauthenticated
	}
	if req.SuperAdmin && !principal.IsSuperAdmin {
		return fmt.Errorf("platform owner required: %w", ErrForbidden)
	}
	needsOrg := req.ActiveOrg || len(req.Roles) > 0 || len(req.Permissions) > 0
	if needsOrg && !principal.HasActiveOrg() {
		return fmt.Errorf("%w: %w", ErrNoActiveOrg, ErrForbidden)
	}
	if needsOrg && !req.AllowInactiveOrg && !principal.OrgStatus.IsOperational() {
		return fmt.Errorf("%w: %w", ErrOrgInactive, ErrForbidden)
	}
	if len(req.Roles) > 0 && !slices.Contains(req.Roles, principal.Role) {
		return fmt.Errorf("role[%s] is not allowed: %w", principal.Role, ErrForbidden)
	}
	for _, perm := range req.Permissions {
		if !principal.HasPermission(perm) {
			return fmt.Errorf("permission[%s] is required: %w", perm, ErrForbidden)
		}
	}
	return nil
}

// ResolveActiveOrg picks the membership that becomes the active org. An
// empty requestedOrgId selects the first membership. Super admins may
// act inside any organisation; they are given the OWNER role there.
func ResolveActiveOrg(user models.User, memberships []models.UserOrg, requested *models.Org) (*models.UserOrg, error) {
	if requested == nil {
		if len(memberships) == 0 {
			return nil, ErrNoActiveOrg
		}
		output := memberships[0]
		return &output, nil
	}
	for _, membership := range memberships {
		if membership.OrgId == requested.Id {
			output := membership
			return &output, nil
		}
	}
	if user.IsSuperAdmin {
		return &models.UserOrg{
			Membership: models.Membership{
				UserId: user.Id,
				OrgId:  requested.Id,
				Role:   models.RoleOwner,
			},
			OrgName:   requested.Name,
			OrgSlug:   requested.Slug,
			OrgStatus: requested.Status,
		}, nil
	}
	return nil, ErrNotMember
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext returns the principal attached by the session
// middleware or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}
