package models

import "time"

// PaymentStatus is the derived status of a monthly fee record
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusLate    PaymentStatus = "LATE"
	PaymentStatusOverdue PaymentStatus = "OVERDUE"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// MonthlyPaymentRecord tracks a student's fee for one class in one month
type MonthlyPaymentRecord struct {
	Id        string `json:"id"`
	OrgId     string `json:"orgId"`
	StudentId string `json:"studentId"`
	ClassId   string `json:"classId"`

	// Month is formatted as YYYY-MM
	Month   string        `json:"month"`
	AmountP int64         `json:"amountP"`
	Status  PaymentStatus `json:"status"`

	PaidAt    *time.Time     `json:"paidAt,omitempty"`
	Method    *PaymentMethod `json:"method,omitempty"`
	Reference *string        `json:"reference,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (r MonthlyPaymentRecord) Clone() MonthlyPaymentRecord {
	output := r
	output.PaidAt = cloneTime(r.PaidAt)
	output.Reference = cloneString(r.Reference)
	output.UpdatedAt = cloneTime(r.UpdatedAt)
	if r.Method != nil {
		method := *r.Method
		output.Method = &method
	}
	return output
}

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

type Invoice struct {
	Id          string        `json:"id"`
	OrgId       string        `json:"orgId"`
	StudentId   string        `json:"studentId"`
	AmountP     int64         `json:"amountP"`
	Description string        `json:"description"`
	DueDate     time.Time     `json:"dueDate"`
	Status      InvoiceStatus `json:"status"`
	PaidAt      *time.Time    `json:"paidAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (i Invoice) Clone() Invoice {
	output := i
	output.PaidAt = cloneTime(i.PaidAt)
	return output
}

type PaymentOutcome string

const (
	PaymentOutcomeSucceeded PaymentOutcome = "SUCCEEDED"
	PaymentOutcomeFailed    PaymentOutcome = "FAILED"
)

// Payment is an attempt to settle an invoice or monthly record
type Payment struct {
	Id        string         `json:"id"`
	OrgId     string         `json:"orgId"`
	StudentId string         `json:"studentId"`
	PayerId   *string        `json:"payerId,omitempty"`
	InvoiceId *string        `json:"invoiceId,omitempty"`
	RecordId  *string        `json:"recordId,omitempty"`
	AmountP   int64          `json:"amountP"`
	Method    PaymentMethod  `json:"method"`
	Outcome   PaymentOutcome `json:"outcome"`

	// ProviderReference is the card processor's identifier
	ProviderReference *string   `json:"providerReference,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (p Payment) Clone() Payment {
	output := p
	output.PayerId = cloneString(p.PayerId)
	output.InvoiceId = cloneString(p.InvoiceId)
	output.RecordId = cloneString(p.RecordId)
	output.ProviderReference = cloneString(p.ProviderReference)
	return output
}
