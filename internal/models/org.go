package models

import (
	"time"
)

// OrgStatus defines where an organisation sits in its billing lifecycle
type OrgStatus string

const (
	// OrgStatusActive is the normal operating state
	OrgStatusActive OrgStatus = "ACTIVE"

	// OrgStatusPaused is entered automatically after repeated platform
	// payment failures; it is cleared on the next successful payment
	OrgStatusPaused OrgStatus = "PAUSED"

	// OrgStatusSuspended is entered automatically when payment failures
	// continue past the pause threshold
	OrgStatusSuspended OrgStatus = "SUSPENDED"

	// OrgStatusDeactivated can only be set by a platform owner
	OrgStatusDeactivated OrgStatus = "DEACTIVATED"
)

var OrgStatuses = []OrgStatus{
	OrgStatusActive,
	OrgStatusPaused,
	OrgStatusSuspended,
	OrgStatusDeactivated,
}

// IsOperational returns true when members of the organisation may use
// tenant features
func (s OrgStatus) IsOperational() bool {
	return s == OrgStatusActive || s == OrgStatusPaused
}

// PaymentMethod is a way that parents can pay fees
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodCash,
	PaymentMethodBankTransfer,
}

// OrgSettings holds the typed per-organisation configuration
type OrgSettings struct {
	// BillingDay is the day of the month that the platform
	// subscription is billed on
	BillingDay *int `json:"billingDay,omitempty" validate:"omitempty,min=1,max=31"`

	// FeeDueDay is the default day of the month that student
	// fees are due on; classes may override it
	FeeDueDay *int `json:"feeDueDay,omitempty" validate:"omitempty,min=1,max=31"`

	AcceptedPaymentMethods []PaymentMethod `json:"acceptedPaymentMethods" validate:"dive,oneof=CARD CASH BANK_TRANSFER"`

	// Timezone is an IANA timezone name used to anchor due dates
	Timezone string `json:"timezone,omitempty"`
}

// AcceptsPaymentMethod returns true when the method is allowed for the
// organisation; an empty list accepts every method
func (s OrgSettings) AcceptsPaymentMethod(method PaymentMethod) bool {
	if len(s.AcceptedPaymentMethods) == 0 {
		return true
	}
	for _, accepted := range s.AcceptedPaymentMethods {
		if accepted == method {
			return true
		}
	}
	return false
}

// Location resolves the organisation's timezone, falling back to the
// provided location when unset or invalid
func (s OrgSettings) Location(fallback *time.Location) *time.Location {
	if s.Timezone == "" {
		return fallback
	}
	location, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return location
}

type Org struct {
	Id       string      `json:"id"`
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	Status   OrgStatus   `json:"status"`
	Settings OrgSettings `json:"settings"`

	StripeCustomerId *string `json:"stripeCustomerId,omitempty"`

	PaymentFailureCount  int        `json:"paymentFailureCount"`
	LastPaymentFailureAt *time.Time `json:"lastPaymentFailureAt,omitempty"`
	PausedAt             *time.Time `json:"pausedAt,omitempty"`
	SuspendedAt          *time.Time `json:"suspendedAt,omitempty"`
	DeactivatedAt        *time.Time `json:"deactivatedAt,omitempty"`
	StatusReason         *string    `json:"statusReason,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the organisation
func (o Org) Clone() Org {
	output := o
	output.StripeCustomerId = cloneString(o.StripeCustomerId)
	output.LastPaymentFailureAt = cloneTime(o.LastPaymentFailureAt)
	output.PausedAt = cloneTime(o.PausedAt)
	output.SuspendedAt = cloneTime(o.SuspendedAt)
	output.DeactivatedAt = cloneTime(o.DeactivatedAt)
	output.StatusReason = cloneString(o.StatusReason)
	output.UpdatedAt = cloneTime(o.UpdatedAt)
	output.Settings.BillingDay = cloneInt(o.Settings.BillingDay)
	output.Settings.FeeDueDay = cloneInt(o.Settings.FeeDueDay)
	if o.Settings.AcceptedPaymentMethods != nil {
		output.Settings.AcceptedPaymentMethods = append([]PaymentMethod{}, o.Settings.AcceptedPaymentMethods...)
	}
	return output
}
