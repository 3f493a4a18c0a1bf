package access

import (
	"context"
	"testing"

	"madrasah/internal/models"

	"github.com/stretchr/testify/require"
)

func staff(subrole models.StaffSubrole) *Principal {
	return &Principal{
		UserId:       "user-1",
		OrgId:        "org-1",
		OrgStatus:    models.OrgStatusActive,
		Role:         models.RoleStaff,
		StaffSubrole: &subrole,
	}
}

func TestAuthorize(t *testing.T) {
	admin := &Principal{UserId: "user-1", OrgId: "org-1", OrgStatus: models.OrgStatusActive, Role: models.RoleAdmin}
	parent := &Principal{UserId: "user-2", OrgId: "org-1", OrgStatus: models.OrgStatusActive, Role: models.RoleParent}
	suspended := &Principal{UserId: "user-1", OrgId: "org-1", OrgStatus: models.OrgStatusSuspended, Role: models.RoleAdmin}
	paused := &Principal{UserId: "user-1", OrgId: "org-1", OrgStatus: models.OrgStatusPaused, Role: models.RoleAdmin}
	noOrg := &Principal{UserId: "user-3"}
	owner := &Principal{UserId: "user-4", IsSuperAdmin: true}

	testCases := []struct {
		name      string
		principal *Principal
		req       Requirement
		expected  error
	}{
		{"missing principal", nil, Requirement{}, ErrUnauthenticated},
		{"admin role allowed", admin, Requirement{Roles: []models.Role{models.RoleAdmin, models.RoleOwner}}, nil},
		{"parent role rejected", parent, Requirement{Roles: []models.Role{models.RoleAdmin}}, ErrForbidden},
		{"parent can claim", parent, Requirement{Permissions: []Permission{PermStudentsClaim}}, nil},
		{"parent cannot manage payments", parent, Requirement{Permissions: []Permission{PermPaymentsManage}}, ErrForbidden},
		{"teacher records attendance", staff(models.StaffSubroleTeacher), Requirement{Permissions: []Permission{PermAttendanceRecord}}, nil},
		{"teacher cannot manage payments", staff(models.StaffSubroleTeacher), Requirement{Permissions: []Permission{PermPaymentsManage}}, ErrForbidden},
		{"finance officer manages payments", staff(models.StaffSubroleFinanceOfficer), Requirement{Permissions: []Permission{PermPaymentsManage}}, nil},
		{"finance officer cannot record attendance", staff(models.StaffSubroleFinanceOfficer), Requirement{Permissions: []Permission{PermAttendanceRecord}}, ErrForbidden},
		{"staff without subrole has nothing", &Principal{UserId: "u", OrgId: "o", OrgStatus: models.OrgStatusActive, Role: models.RoleStaff}, Requirement{Permissions: []Permission{PermStudentsView}}, ErrForbidden},
		{"suspended org blocks tenant routes", suspended, Requirement{Permissions: []Permission{PermStudentsView}}, ErrOrgInactive},
		{"suspended org allowed on info routes", suspended, Requirement{ActiveOrg: true, AllowInactiveOrg: true}, nil},
		{"paused org still operates", paused, Requirement{Permissions: []Permission{PermStudentsView}}, nil},
		{"no active org", noOrg, Requirement{ActiveOrg: true}, ErrNoActiveOrg},
		{"authenticated only", noOrg, Requirement{}, nil},
		{"platform route needs owner", admin, Requirement{SuperAdmin: true}, ErrForbidden},
		{"platform route for owner", owner, Requirement{SuperAdmin: true}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.principal, tc.req)
			if tc.expected == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestAuthorize_InactiveOrgIsForbidden(t *testing.T) {
	deactivated := &Principal{UserId: "user-1", OrgId: "org-1", OrgStatus: models.OrgStatusDeactivated, Role: models.RoleAdmin}
	err := Authorize(deactivated, Requirement{Roles: []models.Role{models.RoleAdmin}})
	require.ErrorIs(t, err, ErrOrgInactive)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestResolveActiveOrg(t *testing.T) {
	user := models.User{Id: "user-1"}
	memberships := []models.UserOrg{
		{Membership: models.Membership{UserId: "user-1", OrgId: "org-a", Role: models.RoleAdmin}},
		{Membership: models.Membership{UserId: "user-1", OrgId: "org-b", Role: models.RoleParent}},
	}

	active, err := ResolveActiveOrg(user, memberships, nil)
	require.NoError(t, err)
	require.Equal(t, "org-a", active.OrgId)

	active, err = ResolveActiveOrg(user, memberships, &models.Org{Id: "org-b"})
	require.NoError(t, err)
	require.Equal(t, models.RoleParent, active.Role)

	_, err = ResolveActiveOrg(user, memberships, &models.Org{Id: "org-c"})
	require.ErrorIs(t, err, ErrNotMember)

	_, err = ResolveActiveOrg(user, nil, nil)
	require.ErrorIs(t, err, ErrNoActiveOrg)

	superAdmin := models.User{Id: "owner-1", IsSuperAdmin: true}
	active, err = ResolveActiveOrg(superAdmin, nil, &models.Org{Id: "org-c", Status: models.OrgStatusSuspended})
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, active.Role)
	require.Equal(t, models.OrgStatusSuspended, active.OrgStatus)
}

func TestPrincipalContext(t *testing.T) {
	require.Nil(t, PrincipalFromContext(context.Background()))
	principal := &Principal{UserId: "user-1"}
	ctx := WithPrincipal(context.Background(), principal)
	require.Same(t, principal, PrincipalFromContext(ctx))
}
