// Package billing derives and persists the status of monthly fee records
// and invoices
package billing

import (
	"errors"
	"fmt"
	"time"

	"madrasah/internal/models"
)

const (
	// LateAfter is how long after the due instant a record becomes LATE
	LateAfter = 48 * time.Hour

	// OverdueAfter is how long after the due instant a record becomes
	// OVERDUE
	OverdueAfter = 96 * time.Hour

	MonthLayout = "2006-01"
)

var ErrInvalidMonth = errors.New("invalid_month")

// ParseMonth parses a YYYY-MM month string
func ParseMonth(month string) (year int, mon time.Month, err error) {
	parsed, err := time.Parse(MonthLayout, month)
	if err != nil {
		return 0, 0, fmt.Errorf("month[%s] is not formatted as YYYY-MM: %w", month, ErrInvalidMonth)
	}
	return parsed.Year(), parsed.Month(), nil
}

// DueDate returns the last moment (23:59:59.999) of the fee due day of
// the month in the given location; days past the end of the month roll
// over into the following month
func DueDate(month string, feeDueDay int, location *time.Location) (time.Time, error) {
	year, mon, err := ParseMonth(month)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, mon, feeDueDay, 23, 59, 59, int(999*time.Millisecond), location), nil
}

// CalculatePaymentStatus returns the status a monthly record should hold
// at now. It is pure: the caller persists the result. A record that has
// been paid is always PAID; without a fee due day the current status is
// kept. When the month cannot be parsed the current status is returned
// together with the error.
func CalculatePaymentStatus(
	current models.PaymentStatus,
	month string,
	feeDueDay *int,
	paidAt *time.Time,
	now time.Time,
) (models.PaymentStatus, error) {
	if paidAt != nil || current == models.PaymentStatusPaid {
		return models.PaymentStatusPaid, nil
	}
	if feeDueDay == nil {
		return current, nil
	}
	dueDate, err := DueDate(month, *feeDueDay, now.Location())
	if err != nil {
		return current, err
	}
	pastDue := now.Sub(dueDate)
	switch {
	case pastDue > OverdueAfter:
		return models.PaymentStatusOverdue, nil
	case pastDue > LateAfter:
		return models.PaymentStatusLate, nil
	default:
		return models.PaymentStatusPending, nil
	}
}

// ResolveFeeDueDay returns the class override when set, otherwise the
// organisation's default
func ResolveFeeDueDay(class models.Class, settings models.OrgSettings) *int {
	if class.FeeDueDay != nil {
		return class.FeeDueDay
	}
	return settings.FeeDueDay
}

// CalculateInvoiceStatus returns the status an invoice should hold at now
func CalculateInvoiceStatus(invoice models.Invoice, now time.Time) models.InvoiceStatus {
	switch {
	case invoice.PaidAt != nil || invoice.Status == models.InvoiceStatusPaid:
		return models.InvoiceStatusPaid
	case invoice.Status == models.InvoiceStatusCancelled:
		return models.InvoiceStatusCancelled
	case now.After(invoice.DueDate):
		return models.InvoiceStatusOverdue
	default:
		return models.InvoiceStatusPending
	}
}
