package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

var (
	ErrAlreadyPaid           = errors.New("already_paid")
	ErrInvoiceCancelled      = errors.New("invoice_cancelled")
	ErrPaymentMethodRejected = errors.New("payment_method_not_accepted")
	ErrAmountMismatch        = errors.New("amount_mismatch")
)

type Service struct {
	Store       store.Store
	Audit       audit.Logger
	ServiceLogs chan<- common.ServiceLog
}

// RecalculateResult summarises one organisation's recalculation
type RecalculateResult struct {
	RecordsChecked  int `json:"recordsChecked" yaml:"recordsChecked"`
	RecordsUpdated  int `json:"recordsUpdated" yaml:"recordsUpdated"`
	InvoicesChecked int `json:"invoicesChecked" yaml:"invoicesChecked"`
	InvoicesUpdated int `json:"invoicesUpdated" yaml:"invoicesUpdated"`
	Errors          int `json:"errors" yaml:"errors"`
}

func (r RecalculateResult) Updated() int {
	return r.RecordsUpdated + r.InvoicesUpdated
}

// RecalculateOrg recomputes and persists the status of every unpaid
// monthly record and invoice of an organisation. It is safe to run
// repeatedly; records whose status would not change are not written.
// Writes only apply while the row still holds the status it was listed
// with, so a payment landing mid-run is never overwritten. Failures on
// individual rows are counted and do not stop the run.
func (s *Service) RecalculateOrg(ctx context.Context, orgId string, now time.Time) (RecalculateResult, error) {
	result := RecalculateResult{}
	org, err := s.Store.GetOrg(ctx, orgId)
	if err != nil {
		return result, fmt.Errorf("failed to get org[%s]: %w", orgId, err)
	}
	now = now.In(org.Settings.Location(now.Location()))

	classes, err := s.Store.ListClasses(ctx, orgId)
	if err != nil {
		return result, fmt.Errorf("failed to list classes of org[%s]: %w", orgId, err)
	}
	classesById := make(map[string]models.Class, len(classes))
	for _, class := range classes {
		classesById[class.Id] = class
	}

	records, err := s.Store.ListMonthlyRecords(ctx, orgId, store.RecordFilter{UnpaidOnly: true})
	if err != nil {
		return result, fmt.Errorf("failed to list monthly records of org[%s]: %w", orgId, err)
	}
	for _, record := range records {
		result.RecordsChecked++
		feeDueDay := org.Settings.FeeDueDay
		if class, ok := classesById[record.ClassId]; ok {
			feeDueDay = ResolveFeeDueDay(class, org.Settings)
		}
		status, err := CalculatePaymentStatus(record.Status, record.Month, feeDueDay, record.PaidAt, now)
		if err != nil {
			result.Errors++
			s.log(common.LogLevelWarn, "failed to calculate status of record[%s]: %s", record.Id, err)
			continue
		}
		if status == record.Status {
			continue
		}
		if err := s.Store.UpdateMonthlyRecordStatus(ctx, orgId, record.Id, record.Status, status); err != nil {
			if errors.Is(err, store.ErrConflict) {
				s.log(common.LogLevelDebug, "record[%s] changed since it was listed, skipping", record.Id)
				continue
			}
			result.Errors++
			s.log(common.LogLevelWarn, "failed to update record[%s]: %s", record.Id, err)
			continue
		}
		statusTransitionsCounter.WithLabelValues("record", string(status)).Inc()
		result.RecordsUpdated++
	}

	invoices, err := s.Store.ListInvoices(ctx, orgId, store.InvoiceFilter{UnpaidOnly: true})
	if err != nil {
		return result, fmt.Errorf("failed to list invoices of org[%s]: %w", orgId, err)
	}
	for _, invoice := range invoices {
		result.InvoicesChecked++
		status := CalculateInvoiceStatus(invoice, now)
		if status == invoice.Status {
			continue
		}
		if err := s.Store.UpdateInvoiceStatus(ctx, orgId, invoice.Id, invoice.Status, status); err != nil {
			if errors.Is(err, store.ErrConflict) {
				s.log(common.LogLevelDebug, "invoice[%s] changed since it was listed, skipping", invoice.Id)
				continue
			}
			result.Errors++
			s.log(common.LogLevelWarn, "failed to update invoice[%s]: %s", invoice.Id, err)
			continue
		}
		statusTransitionsCounter.WithLabelValues("invoice", string(status)).Inc()
		result.InvoicesUpdated++
	}
	return result, nil
}

type GenerateResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// GenerateMonthlyRecords creates one PENDING record per active enrollment
// for the month; enrollments that already have a record are skipped
func (s *Service) GenerateMonthlyRecords(ctx context.Context, orgId, month string) (GenerateResult, error) {
	result := GenerateResult{}
	if _, _, err := ParseMonth(month); err != nil {
		return result, err
	}
	classes, err := s.Store.ListClasses(ctx, orgId)
	if err != nil {
		return result, fmt.Errorf("failed to list classes of org[%s]: %w", orgId, err)
	}
	activeStudents, err := s.Store.ListStudents(ctx, orgId, store.StudentFilter{})
	if err != nil {
		return result, fmt.Errorf("failed to list students of org[%s]: %w", orgId, err)
	}
	isActive := make(map[string]bool, len(activeStudents))
	for _, student := range activeStudents {
		isActive[student.Id] = true
	}
	for _, class := range classes {
		classId := class.Id
		enrollments, err := s.Store.ListEnrollments(ctx, orgId, store.EnrollmentFilter{ClassId: &classId})
		if err != nil {
			return result, fmt.Errorf("failed to list enrollments of class[%s]: %w", class.Id, err)
		}
		for _, enrollment := range enrollments {
			if !isActive[enrollment.StudentId] {
				continue
			}
			record := &models.MonthlyPaymentRecord{
				OrgId:     orgId,
				StudentId: enrollment.StudentId,
				ClassId:   class.Id,
				Month:     month,
				AmountP:   class.MonthlyFeeP,
				Status:    models.PaymentStatusPending,
			}
			if err := s.Store.CreateMonthlyRecord(ctx, record); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					result.Skipped++
					continue
				}
				return result, fmt.Errorf("failed to create record for student[%s] in class[%s]: %w", enrollment.StudentId, class.Id, err)
			}
			result.Created++
		}
	}
	return result, nil
}

type MarkPaidOpts struct {
	OrgId   string
	ActorId *string

	// PayerId is the parent who paid; staff recording cash are actors,
	// not payers
	PayerId           *string
	Method            models.PaymentMethod
	Reference         *string
	ProviderReference *string
	PaidAt            time.Time

	// AmountP is the amount actually received; when set it must equal the
	// amount due or nothing is settled
	AmountP *int64

	// Confirmed marks a payment the provider already settled; it is
	// recorded even when the org no longer accepts the method
	Confirmed bool
}

// MarkRecordPaid records a successful payment against a monthly record
func (s *Service) MarkRecordPaid(ctx context.Context, recordId string, opts MarkPaidOpts) (*models.MonthlyPaymentRecord, error) {
	org, err := s.Store.GetOrg(ctx, opts.OrgId)
	if err != nil {
		return nil, fmt.Errorf("failed to get org[%s]: %w", opts.OrgId, err)
	}
	if !opts.Confirmed && !org.Settings.AcceptsPaymentMethod(opts.Method) {
		return nil, ErrPaymentMethodRejected
	}
	record, err := s.Store.GetMonthlyRecord(ctx, opts.OrgId, recordId)
	if err != nil {
		return nil, fmt.Errorf("failed to get record[%s]: %w", recordId, err)
	}
	if record.Status == models.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if err := checkAmount(record.AmountP, opts.AmountP); err != nil {
		return nil, err
	}
	paidAt := opts.PaidAt
	record.Status = models.PaymentStatusPaid
	record.PaidAt = &paidAt
	record.Method = &opts.Method
	record.Reference = opts.Reference
	payment := &models.Payment{
		OrgId:             opts.OrgId,
		StudentId:         record.StudentId,
		PayerId:           opts.PayerId,
		RecordId:          &record.Id,
		AmountP:           record.AmountP,
		Method:            opts.Method,
		Outcome:           models.PaymentOutcomeSucceeded,
		ProviderReference: opts.ProviderReference,
		CreatedAt:         paidAt,
	}
	if err := s.Store.SettleMonthlyRecord(ctx, *record, payment); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("failed to settle record[%s]: %w", recordId, err)
	}
	paymentsCounter.WithLabelValues(string(payment.Method), string(payment.Outcome)).Inc()
	statusTransitionsCounter.WithLabelValues("record", string(models.PaymentStatusPaid)).Inc()
	s.audit(ctx, audit.NewEntry(&opts.OrgId, opts.ActorId, audit.ActionRecordPaid, audit.TargetRecord, record.Id, map[string]any{
		"method":  string(opts.Method),
		"amountP": record.AmountP,
		"month":   record.Month,
	}))
	return record, nil
}

// MarkInvoicePaid records a successful payment against an invoice
func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceId string, opts MarkPaidOpts) (*models.Invoice, error) {
	org, err := s.Store.GetOrg(ctx, opts.OrgId)
	if err != nil {
		return nil, fmt.Errorf("failed to get org[%s]: %w", opts.OrgId, err)
	}
	if !opts.Confirmed && !org.Settings.AcceptsPaymentMethod(opts.Method) {
		return nil, ErrPaymentMethodRejected
	}
	invoice, err := s.Store.GetInvoice(ctx, opts.OrgId, invoiceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice[%s]: %w", invoiceId, err)
	}
	switch invoice.Status {
	case models.InvoiceStatusPaid:
		return nil, ErrAlreadyPaid
	case models.InvoiceStatusCancelled:
		return nil, ErrInvoiceCancelled
	}
	if err := checkAmount(invoice.AmountP, opts.AmountP); err != nil {
		return nil, err
	}
	paidAt := opts.PaidAt
	invoice.Status = models.InvoiceStatusPaid
	invoice.PaidAt = &paidAt
	payment := &models.Payment{
		OrgId:             opts.OrgId,
		StudentId:         invoice.StudentId,
		PayerId:           opts.PayerId,
		InvoiceId:         &invoice.Id,
		AmountP:           invoice.AmountP,
		Method:            opts.Method,
		Outcome:           models.PaymentOutcomeSucceeded,
		ProviderReference: opts.ProviderReference,
		CreatedAt:         paidAt,
	}
	if err := s.Store.SettleInvoice(ctx, *invoice, payment); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("failed to settle invoice[%s]: %w", invoiceId, err)
		}
		if current, getErr := s.Store.GetInvoice(ctx, opts.OrgId, invoiceId); getErr == nil && current.Status == models.InvoiceStatusCancelled {
			return nil, ErrInvoiceCancelled
		}
		return nil, ErrAlreadyPaid
	}
	paymentsCounter.WithLabelValues(string(payment.Method), string(payment.Outcome)).Inc()
	statusTransitionsCounter.WithLabelValues("invoice", string(models.InvoiceStatusPaid)).Inc()
	s.audit(ctx, audit.NewEntry(&opts.OrgId, opts.ActorId, audit.ActionInvoicePaid, audit.TargetInvoice, invoice.Id, map[string]any{
		"method":  string(opts.Method),
		"amountP": invoice.AmountP,
	}))
	return invoice, nil
}

// checkAmount rejects a received amount that differs from the amount due
func checkAmount(dueP int64, receivedP *int64) error {
	if receivedP == nil || *receivedP == dueP {
		return nil
	}
	return fmt.Errorf("received %s against %s due: %w", FormatAmount(*receivedP), FormatAmount(dueP), ErrAmountMismatch)
}

type FailedPaymentOpts struct {
	OrgId             string
	StudentId         string
	RecordId          *string
	InvoiceId         *string
	AmountP           int64
	ProviderReference *string
	Reason            string
	At                time.Time
}

// RecordFailedPayment stores a FAILED card payment attempt; the record or
// invoice it targeted is left untouched
func (s *Service) RecordFailedPayment(ctx context.Context, opts FailedPaymentOpts) (*models.Payment, error) {
	payment := &models.Payment{
		OrgId:             opts.OrgId,
		StudentId:         opts.StudentId,
		RecordId:          opts.RecordId,
		InvoiceId:         opts.InvoiceId,
		AmountP:           opts.AmountP,
		Method:            models.PaymentMethodCard,
		Outcome:           models.PaymentOutcomeFailed,
		ProviderReference: opts.ProviderReference,
		CreatedAt:         opts.At,
	}
	if err := s.createPayment(ctx, payment); err != nil {
		return nil, err
	}
	s.audit(ctx, audit.NewEntry(&opts.OrgId, nil, audit.ActionPaymentFailed, audit.TargetPayment, payment.Id, map[string]any{
		"reason":  opts.Reason,
		"amountP": opts.AmountP,
	}))
	return payment, nil
}

func (s *Service) createPayment(ctx context.Context, payment *models.Payment) error {
	if err := s.Store.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	paymentsCounter.WithLabelValues(string(payment.Method), string(payment.Outcome)).Inc()
	return nil
}

func (s *Service) audit(ctx context.Context, entry models.AuditLog) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Log(ctx, entry); err != nil {
		s.log(common.LogLevelWarn, "failed to write audit entry[%s]: %s", entry.Action, err)
	}
}

func (s *Service) log(level, format string, args ...any) {
	if s.ServiceLogs != nil {
		s.ServiceLogs <- common.ServiceLogf(level, format, args...)
	}
}
