package models

import "time"

// Role is the role a user holds within an organisation
type Role string

const (
	// RoleOwner is reserved for platform owners (super admins)
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleParent Role = "PARENT"
)

var Roles = []Role{
	RoleOwner,
	RoleAdmin,
	RoleStaff,
	RoleParent,
}

// StaffSubrole narrows the permissions of a STAFF member
type StaffSubrole string

const (
	StaffSubroleTeacher        StaffSubrole = "TEACHER"
	StaffSubroleFinanceOfficer StaffSubrole = "FINANCE_OFFICER"
	StaffSubroleAdmin          StaffSubrole = "ADMIN"
)

var StaffSubroles = []StaffSubrole{
	StaffSubroleTeacher,
	StaffSubroleFinanceOfficer,
	StaffSubroleAdmin,
}

type User struct {
	Id           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`

	// IsSuperAdmin marks a platform owner
	IsSuperAdmin bool `json:"isSuperAdmin"`

	Phone *string `json:"phone,omitempty"`

	// GiftAidDeclared is set when the user has made a Gift Aid
	// declaration covering their donations
	GiftAidDeclared bool    `json:"giftAidDeclared"`
	AddressLine     *string `json:"addressLine,omitempty"`
	Postcode        *string `json:"postcode,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Clone() User {
	output := u
	output.Phone = cloneString(u.Phone)
	output.AddressLine = cloneString(u.AddressLine)
	output.Postcode = cloneString(u.Postcode)
	return output
}

// Membership links a user to an organisation with a role
type Membership struct {
	UserId       string        `json:"userId"`
	OrgId        string        `json:"orgId"`
	Role         Role          `json:"role"`
	StaffSubrole *StaffSubrole `json:"staffSubrole,omitempty"`
	JoinedAt     time.Time     `json:"joinedAt"`
}

func (m Membership) Clone() Membership {
	output := m
	if m.StaffSubrole != nil {
		subrole := *m.StaffSubrole
		output.StaffSubrole = &subrole
	}
	return output
}

// OrgMember is a membership joined with the member's user record
type OrgMember struct {
	Membership
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserOrg is a membership joined with the organisation record
type UserOrg struct {
	Membership
	OrgName   string    `json:"orgName"`
	OrgSlug   string    `json:"orgSlug"`
	OrgStatus OrgStatus `json:"orgStatus"`
}
