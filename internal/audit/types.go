package audit

import (
	"errors"
)

var (
	ErrorNotInitialized = errors.New("not_initialized")
)

// Action names what happened; values are stored as-is
const (
	ActionOrgCreated          = "org.created"
	ActionOrgSettingsUpdated  = "org.settings_updated"
	ActionOrgPaymentFailed    = "org.payment_failed"
	ActionOrgPaymentSucceeded = "org.payment_succeeded"
	ActionOrgPaused           = "org.paused"
	ActionOrgSuspended        = "org.suspended"
	ActionOrgReactivated      = "org.reactivated"
	ActionOrgDeactivated      = "org.deactivated"
	ActionMemberAdded         = "member.added"
	ActionStudentCreated      = "student.created"
	ActionStudentsImported    = "student.imported"
	ActionClaimCodeGenerated  = "claim.code_generated"
	ActionClaimSubmitted      = "claim.submitted"
	ActionClaimApproved       = "claim.approved"
	ActionClaimRejected       = "claim.rejected"
	ActionClassCreated        = "class.created"
	ActionClassUpdated        = "class.updated"
	ActionStudentEnrolled     = "class.student_enrolled"
	ActionAttendanceRecorded  = "attendance.recorded"
	ActionRecordsGenerated    = "payment_record.generated"
	ActionRecordPaid          = "payment_record.paid"
	ActionInvoiceCreated      = "invoice.created"
	ActionInvoicePaid         = "invoice.paid"
	ActionPaymentFailed       = "payment.failed"
	ActionMessageSent         = "message.sent"
	ActionGiftAidExported     = "giftaid.exported"
	ActionUsageReported       = "usage.reported"
	ActionUserSignedUp        = "user.signed_up"
	ActionUserLoggedIn        = "user.logged_in"
)

const (
	TargetOrg     = "org"
	TargetUser    = "user"
	TargetStudent = "student"
	TargetClass   = "class"
	TargetRecord  = "payment_record"
	TargetInvoice = "invoice"
	TargetPayment = "payment"
)
