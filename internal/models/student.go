package models

import "time"

// ClaimStatus tracks whether a parent has linked themselves to a student
type ClaimStatus string

const (
	ClaimStatusNotClaimed          ClaimStatus = "NOT_CLAIMED"
	ClaimStatusPendingVerification ClaimStatus = "PENDING_VERIFICATION"
	ClaimStatusClaimed             ClaimStatus = "CLAIMED"
)

type Student struct {
	Id          string     `json:"id"`
	OrgId       string     `json:"orgId"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`

	// PrimaryParentId is set once a claim has been approved
	PrimaryParentId *string `json:"primaryParentId,omitempty"`

	ClaimCode          *string     `json:"claimCode,omitempty"`
	ClaimCodeExpiresAt *time.Time  `json:"claimCodeExpiresAt,omitempty"`
	ClaimStatus        ClaimStatus `json:"claimStatus"`

	// PendingParentId is the user that submitted a claim which is
	// awaiting verification by an admin
	PendingParentId *string    `json:"pendingParentId,omitempty"`
	ClaimedAt       *time.Time `json:"claimedAt,omitempty"`

	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s Student) Clone() Student {
	output := s
	output.DateOfBirth = cloneTime(s.DateOfBirth)
	output.PrimaryParentId = cloneString(s.PrimaryParentId)
	output.ClaimCode = cloneString(s.ClaimCode)
	output.ClaimCodeExpiresAt = cloneTime(s.ClaimCodeExpiresAt)
	output.PendingParentId = cloneString(s.PendingParentId)
	output.ClaimedAt = cloneTime(s.ClaimedAt)
	return output
}

// ClassSchedule is the typed weekly schedule of a class
type ClassSchedule struct {
	Days      []time.Weekday `json:"days" validate:"dive,min=0,max=6"`
	StartTime string         `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime   string         `json:"endTime" validate:"omitempty,datetime=15:04"`
}

type Class struct {
	Id        string  `json:"id"`
	OrgId     string  `json:"orgId"`
	Name      string  `json:"name"`
	TeacherId *string `json:"teacherId,omitempty"`

	// MonthlyFeeP is the monthly fee in pence
	MonthlyFeeP int64 `json:"monthlyFeeP"`

	// FeeDueDay overrides the organisation's default fee due day
	FeeDueDay *int          `json:"feeDueDay,omitempty"`
	Schedule  ClassSchedule `json:"schedule"`

	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c Class) Clone() Class {
	output := c
	output.TeacherId = cloneString(c.TeacherId)
	output.FeeDueDay = cloneInt(c.FeeDueDay)
	if c.Schedule.Days != nil {
		output.Schedule.Days = append([]time.Weekday{}, c.Schedule.Days...)
	}
	return output
}

// Enrollment links a student to a class within the same organisation
type Enrollment struct {
	OrgId      string    `json:"orgId"`
	StudentId  string    `json:"studentId"`
	ClassId    string    `json:"classId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

type AttendanceRecord struct {
	Id         string           `json:"id"`
	OrgId      string           `json:"orgId"`
	ClassId    string           `json:"classId"`
	StudentId  string           `json:"studentId"`
	Date       string           `json:"date"`
	Status     AttendanceStatus `json:"status"`
	Notes      *string          `json:"notes,omitempty"`
	RecordedBy string           `json:"recordedBy"`
	RecordedAt time.Time        `json:"recordedAt"`
}
