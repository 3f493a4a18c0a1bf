package store

import (
	"context"
	"errors"
	"time"

	"madrasah/internal/models"
)

var (
	ErrNotFound  = errors.New("not_found")
	ErrDuplicate = errors.New("duplicate_entry")

	// ErrConflict is returned when a conditional update did not match
	// the expected current state of the row
	ErrConflict = errors.New("conflict")
)

// OrgStore persists organisations and their lifecycle state
type OrgStore interface {
	CreateOrg(ctx context.Context, org *models.Org) error
	GetOrg(ctx context.Context, orgId string) (*models.Org, error)
	GetOrgBySlug(ctx context.Context, slug string) (*models.Org, error)
	GetOrgByStripeCustomer(ctx context.Context, customerId string) (*models.Org, error)
	ListOrgs(ctx context.Context) ([]models.Org, error)
	UpdateOrgSettings(ctx context.Context, orgId string, settings models.OrgSettings) error

	// IncrementPaymentFailures atomically increments the failure counter
	// and returns the organisation as it is after the increment
	IncrementPaymentFailures(ctx context.Context, orgId string, at time.Time) (*models.Org, error)

	// ResetPaymentFailures sets the failure counter back to zero
	ResetPaymentFailures(ctx context.Context, orgId string) error

	// UpdateOrgLifecycle writes the status, timestamps and reason of the
	// provided organisation if its stored status still equals
	// expectedStatus, otherwise ErrConflict is returned
	UpdateOrgLifecycle(ctx context.Context, org models.Org, expectedStatus models.OrgStatus) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserGiftAid(ctx context.Context, user models.User) error
	ListUsers(ctx context.Context, userIds []string) ([]models.User, error)
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, membership *models.Membership) error
	GetMembership(ctx context.Context, userId, orgId string) (*models.Membership, error)
	ListUserOrgs(ctx context.Context, userId string) ([]models.UserOrg, error)
	ListOrgMembers(ctx context.Context, orgId string, role *models.Role) ([]models.OrgMember, error)
}

type StudentFilter struct {
	// ParentId restricts results to students whose primary parent is
	// the given user
	ParentId        *string
	IncludeArchived bool
}

type StudentStore interface {
	CreateStudent(ctx context.Context, student *models.Student) error
	GetStudent(ctx context.Context, orgId, studentId string) (*models.Student, error)

	// GetStudentByClaimCode looks up a claim code across all
	// organisations so that callers can detect organisation mismatches
	GetStudentByClaimCode(ctx context.Context, code string) (*models.Student, error)
	ListStudents(ctx context.Context, orgId string, filter StudentFilter) ([]models.Student, error)
	UpdateStudentClaim(ctx context.Context, student models.Student) error
	CountActiveStudents(ctx context.Context, orgId string) (int, error)
}

type EnrollmentFilter struct {
	ClassId   *string
	StudentId *string
}

type ClassStore interface {
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, orgId, classId string) (*models.Class, error)
	ListClasses(ctx context.Context, orgId string) ([]models.Class, error)
	UpdateClass(ctx context.Context, class models.Class) error
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	ListEnrollments(ctx context.Context, orgId string, filter EnrollmentFilter) ([]models.Enrollment, error)
}

type AttendanceStore interface {
	// UpsertAttendance inserts or replaces records keyed on
	// (class, student, date)
	UpsertAttendance(ctx context.Context, records []models.AttendanceRecord) error
	ListAttendance(ctx context.Context, orgId, classId, date string) ([]models.AttendanceRecord, error)
}

type RecordFilter struct {
	Month      *string
	StudentIds []string
	UnpaidOnly bool
}

type InvoiceFilter struct {
	StudentIds []string
	UnpaidOnly bool
}

type PaymentFilter struct {
	From       *time.Time
	To         *time.Time
	StudentIds []string
	Outcome    *models.PaymentOutcome
}

type BillingStore interface {
	CreateMonthlyRecord(ctx context.Context, record *models.MonthlyPaymentRecord) error
	GetMonthlyRecord(ctx context.Context, orgId, recordId string) (*models.MonthlyPaymentRecord, error)
	ListMonthlyRecords(ctx context.Context, orgId string, filter RecordFilter) ([]models.MonthlyPaymentRecord, error)

	// UpdateMonthlyRecordStatus moves an unpaid record from expected to
	// status; ErrConflict is returned when the stored record no longer
	// holds expected or has been paid in the meantime
	UpdateMonthlyRecordStatus(ctx context.Context, orgId, recordId string, expected, status models.PaymentStatus) error

	// SettleMonthlyRecord marks an unpaid record PAID and inserts its
	// payment in one transaction; ErrConflict is returned and nothing is
	// written when the record is already PAID
	SettleMonthlyRecord(ctx context.Context, record models.MonthlyPaymentRecord, payment *models.Payment) error

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	GetInvoice(ctx context.Context, orgId, invoiceId string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, orgId string, filter InvoiceFilter) ([]models.Invoice, error)

	// UpdateInvoiceStatus moves an open invoice from expected to status;
	// ErrConflict is returned when the stored invoice no longer holds
	// expected
	UpdateInvoiceStatus(ctx context.Context, orgId, invoiceId string, expected, status models.InvoiceStatus) error

	// SettleInvoice marks an open invoice PAID and inserts its payment in
	// one transaction; ErrConflict is returned and nothing is written when
	// the invoice is PAID or CANCELLED
	SettleInvoice(ctx context.Context, invoice models.Invoice, payment *models.Payment) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, orgId string, filter PaymentFilter) ([]models.Payment, error)
}

type AuditFilter struct {
	OrgId  *string
	Before *time.Time
	Limit  int
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}

// Store is the full persistence layer
type Store interface {
	OrgStore
	UserStore
	MembershipStore
	StudentStore
	ClassStore
	AttendanceStore
	BillingStore
	AuditStore
}
