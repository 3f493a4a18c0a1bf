package billing

import (
	"context"
	"testing"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	st      *memory.Store
	service *Service
	org     *models.Org
	class   *models.Class
	active  []*models.Student
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	org := &models.Org{
		Name: "Al Noor",
		Slug: "al-noor",
		Settings: models.OrgSettings{
			FeeDueDay:              models.Ptr(15),
			AcceptedPaymentMethods: []models.PaymentMethod{models.PaymentMethodCash, models.PaymentMethodCard},
		},
	}
	require.NoError(t, st.CreateOrg(ctx, org))
	class := &models.Class{OrgId: org.Id, Name: "Quran 1", MonthlyFeeP: 3000}
	require.NoError(t, st.CreateClass(ctx, class))

	fixture := serviceFixture{
		st:    st,
		org:   org,
		class: class,
		service: &Service{
			Store:       st,
			Audit:       &audit.StoreLogger{Store: st},
			ServiceLogs: common.GetNoopServiceLog(),
		},
	}
	for _, name := range []string{"Aisha", "Yusuf", "Maryam"} {
		student := &models.Student{OrgId: org.Id, FirstName: name, LastName: "Khan", IsArchived: name == "Maryam"}
		require.NoError(t, st.CreateStudent(ctx, student))
		require.NoError(t, st.CreateEnrollment(ctx, &models.Enrollment{OrgId: org.Id, ClassId: class.Id, StudentId: student.Id}))
		if !student.IsArchived {
			fixture.active = append(fixture.active, student)
		}
	}
	return fixture
}

func TestService_GenerateMonthlyRecords(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	result, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	require.Equal(t, GenerateResult{Created: 2}, result)

	result, err = f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	require.Equal(t, GenerateResult{Skipped: 2}, result)

	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		require.Equal(t, int64(3000), record.AmountP)
		require.Equal(t, models.PaymentStatusPending, record.Status)
	}

	_, err = f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-13")
	require.ErrorIs(t, err, ErrInvalidMonth)
}

func TestService_RecalculateOrg(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	require.NoError(t, f.st.CreateInvoice(ctx, &models.Invoice{
		OrgId:     f.org.Id,
		StudentId: f.active[0].Id,
		AmountP:   1500,
		DueDate:   time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:    models.InvoiceStatusPending,
	}))

	now := time.Date(2025, time.January, 18, 9, 0, 0, 0, time.UTC)
	result, err := f.service.RecalculateOrg(ctx, f.org.Id, now)
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordsChecked)
	require.Equal(t, 2, result.RecordsUpdated)
	require.Equal(t, 1, result.InvoicesUpdated)
	require.Equal(t, 3, result.Updated())

	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	for _, record := range records {
		require.Equal(t, models.PaymentStatusLate, record.Status)
	}

	result, err = f.service.RecalculateOrg(ctx, f.org.Id, now)
	require.NoError(t, err)
	require.Zero(t, result.Updated())
}

func TestService_RecalculateOrgHonoursClassOverride(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.class.FeeDueDay = models.Ptr(25)
	require.NoError(t, f.st.UpdateClass(ctx, *f.class))
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)

	result, err := f.service.RecalculateOrg(ctx, f.org.Id, time.Date(2025, time.January, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, result.RecordsUpdated)
}

func TestService_MarkRecordPaid(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	recordId := records[0].Id
	actorId := "admin-1"
	paidAt := time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

	t.Run("rejects methods the org does not accept", func(t *testing.T) {
		_, err := f.service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
			OrgId:  f.org.Id,
			Method: models.PaymentMethodBankTransfer,
			PaidAt: paidAt,
		})
		require.ErrorIs(t, err, ErrPaymentMethodRejected)
	})

	t.Run("marks paid and records a payment", func(t *testing.T) {
		record, err := f.service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
			OrgId:     f.org.Id,
			ActorId:   &actorId,
			Method:    models.PaymentMethodCash,
			Reference: models.Ptr("receipt-42"),
			PaidAt:    paidAt,
		})
		require.NoError(t, err)
		require.Equal(t, models.PaymentStatusPaid, record.Status)
		require.True(t, paidAt.Equal(*record.PaidAt))

		payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{})
		require.NoError(t, err)
		require.Len(t, payments, 1)
		require.Equal(t, models.PaymentOutcomeSucceeded, payments[0].Outcome)
		require.Equal(t, recordId, *payments[0].RecordId)

		entries, err := f.st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &f.org.Id})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, audit.ActionRecordPaid, entries[0].Action)
	})

	t.Run("paying twice is rejected", func(t *testing.T) {
		_, err := f.service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
			OrgId:  f.org.Id,
			Method: models.PaymentMethodCash,
			PaidAt: paidAt,
		})
		require.ErrorIs(t, err, ErrAlreadyPaid)
	})

	t.Run("records of another org are not found", func(t *testing.T) {
		other := &models.Org{Name: "Other", Slug: "other"}
		require.NoError(t, f.st.CreateOrg(ctx, other))
		_, err := f.service.MarkRecordPaid(ctx, records[1].Id, MarkPaidOpts{
			OrgId:  other.Id,
			Method: models.PaymentMethodCash,
			PaidAt: paidAt,
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestService_MarkInvoicePaid(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	invoice := &models.Invoice{
		OrgId:     f.org.Id,
		StudentId: f.active[0].Id,
		AmountP:   1500,
		DueDate:   time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:    models.InvoiceStatusPending,
	}
	require.NoError(t, f.st.CreateInvoice(ctx, invoice))

	paid, err := f.service.MarkInvoicePaid(ctx, invoice.Id, MarkPaidOpts{
		OrgId:  f.org.Id,
		Method: models.PaymentMethodCard,
		PaidAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusPaid, paid.Status)

	_, err = f.service.MarkInvoicePaid(ctx, invoice.Id, MarkPaidOpts{OrgId: f.org.Id, Method: models.PaymentMethodCard})
	require.ErrorIs(t, err, ErrAlreadyPaid)

	cancelled := &models.Invoice{
		OrgId:     f.org.Id,
		StudentId: f.active[1].Id,
		AmountP:   500,
		Status:    models.InvoiceStatusCancelled,
	}
	require.NoError(t, f.st.CreateInvoice(ctx, cancelled))
	_, err = f.service.MarkInvoicePaid(ctx, cancelled.Id, MarkPaidOpts{OrgId: f.org.Id, Method: models.PaymentMethodCard})
	require.ErrorIs(t, err, ErrInvoiceCancelled)
}

func TestService_RecordFailedPayment(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	payment, err := f.service.RecordFailedPayment(ctx, FailedPaymentOpts{
		OrgId:     f.org.Id,
		StudentId: f.active[0].Id,
		AmountP:   3000,
		Reason:    "card_declined",
		At:        time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentOutcomeFailed, payment.Outcome)

	failed := models.PaymentOutcomeFailed
	payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{Outcome: &failed})
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

// interleavingStore runs each hook once, right after the matching read,
// so a competing write lands between a read and the write based on it
type interleavingStore struct {
	*memory.Store
	afterGetRecord    func()
	afterGetInvoice   func()
	afterListRecords  func()
	afterListInvoices func()
}

func runOnce(hook *func()) {
	if fn := *hook; fn != nil {
		*hook = nil
		fn()
	}
}

func (s *interleavingStore) GetMonthlyRecord(ctx context.Context, orgId, recordId string) (*models.MonthlyPaymentRecord, error) {
	output, err := s.Store.GetMonthlyRecord(ctx, orgId, recordId)
	runOnce(&s.afterGetRecord)
	return output, err
}

func (s *interleavingStore) GetInvoice(ctx context.Context, orgId, invoiceId string) (*models.Invoice, error) {
	output, err := s.Store.GetInvoice(ctx, orgId, invoiceId)
	runOnce(&s.afterGetInvoice)
	return output, err
}

func (s *interleavingStore) ListMonthlyRecords(ctx context.Context, orgId string, filter store.RecordFilter) ([]models.MonthlyPaymentRecord, error) {
	output, err := s.Store.ListMonthlyRecords(ctx, orgId, filter)
	runOnce(&s.afterListRecords)
	return output, err
}

func (s *interleavingStore) ListInvoices(ctx context.Context, orgId string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	output, err := s.Store.ListInvoices(ctx, orgId, filter)
	runOnce(&s.afterListInvoices)
	return output, err
}

func newInterleavingService(f serviceFixture) (*Service, *interleavingStore) {
	st := &interleavingStore{Store: f.st}
	return &Service{
		Store:       st,
		Audit:       &audit.StoreLogger{Store: f.st},
		ServiceLogs: common.GetNoopServiceLog(),
	}, st
}

func TestService_RecalculateOrgKeepsPaymentMadeDuringRun(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	paidId := records[0].Id
	invoice := &models.Invoice{
		OrgId:     f.org.Id,
		StudentId: f.active[0].Id,
		AmountP:   1500,
		DueDate:   time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:    models.InvoiceStatusPending,
	}
	require.NoError(t, f.st.CreateInvoice(ctx, invoice))

	service, st := newInterleavingService(f)
	paidAt := time.Date(2025, time.January, 18, 8, 59, 0, 0, time.UTC)
	st.afterListRecords = func() {
		_, err := f.service.MarkRecordPaid(ctx, paidId, MarkPaidOpts{OrgId: f.org.Id, Method: models.PaymentMethodCash, PaidAt: paidAt})
		require.NoError(t, err)
	}
	st.afterListInvoices = func() {
		_, err := f.service.MarkInvoicePaid(ctx, invoice.Id, MarkPaidOpts{OrgId: f.org.Id, Method: models.PaymentMethodCard, PaidAt: paidAt})
		require.NoError(t, err)
	}

	result, err := service.RecalculateOrg(ctx, f.org.Id, time.Date(2025, time.January, 18, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, result.RecordsChecked)
	require.Equal(t, 1, result.RecordsUpdated)
	require.Equal(t, 1, result.InvoicesChecked)
	require.Zero(t, result.InvoicesUpdated)
	require.Zero(t, result.Errors)

	record, err := f.st.GetMonthlyRecord(ctx, f.org.Id, paidId)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, record.Status)
	require.NotNil(t, record.PaidAt)

	storedInvoice, err := f.st.GetInvoice(ctx, f.org.Id, invoice.Id)
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusPaid, storedInvoice.Status)

	payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 2)
}

func TestService_MarkRecordPaidSettlesOnce(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	recordId := records[0].Id
	paidAt := time.Date(2025, time.January, 20, 10, 0, 0, 0, time.UTC)

	service, st := newInterleavingService(f)
	st.afterGetRecord = func() {
		_, err := service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
			OrgId:     f.org.Id,
			Method:    models.PaymentMethodCash,
			Reference: models.Ptr("receipt-1"),
			PaidAt:    paidAt,
		})
		require.NoError(t, err)
	}
	_, err = service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
		OrgId:     f.org.Id,
		Method:    models.PaymentMethodCash,
		Reference: models.Ptr("receipt-2"),
		PaidAt:    paidAt,
	})
	require.ErrorIs(t, err, ErrAlreadyPaid)

	record, err := f.st.GetMonthlyRecord(ctx, f.org.Id, recordId)
	require.NoError(t, err)
	require.Equal(t, "receipt-1", *record.Reference)

	payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)

	entries, err := f.st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &f.org.Id})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestService_MarkInvoicePaidAfterConcurrentCancel(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	invoice := &models.Invoice{
		OrgId:     f.org.Id,
		StudentId: f.active[0].Id,
		AmountP:   1500,
		Status:    models.InvoiceStatusPending,
	}
	require.NoError(t, f.st.CreateInvoice(ctx, invoice))

	service, st := newInterleavingService(f)
	st.afterGetInvoice = func() {
		require.NoError(t, f.st.UpdateInvoiceStatus(ctx, f.org.Id, invoice.Id, models.InvoiceStatusPending, models.InvoiceStatusCancelled))
	}
	_, err := service.MarkInvoicePaid(ctx, invoice.Id, MarkPaidOpts{OrgId: f.org.Id, Method: models.PaymentMethodCard, PaidAt: time.Now()})
	require.ErrorIs(t, err, ErrInvoiceCancelled)

	payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestService_MarkPaidRejectsAmountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.service.GenerateMonthlyRecords(ctx, f.org.Id, "2025-01")
	require.NoError(t, err)
	records, err := f.st.ListMonthlyRecords(ctx, f.org.Id, store.RecordFilter{})
	require.NoError(t, err)
	recordId := records[0].Id

	_, err = f.service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
		OrgId:     f.org.Id,
		Method:    models.PaymentMethodCard,
		PaidAt:    time.Now(),
		AmountP:   models.Ptr(int64(1)),
		Confirmed: true,
	})
	require.ErrorIs(t, err, ErrAmountMismatch)

	record, err := f.st.GetMonthlyRecord(ctx, f.org.Id, recordId)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, record.Status)
	require.Nil(t, record.PaidAt)
	payments, err := f.st.ListPayments(ctx, f.org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Empty(t, payments)

	paid, err := f.service.MarkRecordPaid(ctx, recordId, MarkPaidOpts{
		OrgId:     f.org.Id,
		Method:    models.PaymentMethodCard,
		PaidAt:    time.Now(),
		AmountP:   models.Ptr(int64(3000)),
		Confirmed: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, paid.Status)

	invoice := &models.Invoice{OrgId: f.org.Id, StudentId: f.active[0].Id, AmountP: 1500, Status: models.InvoiceStatusPending}
	require.NoError(t, f.st.CreateInvoice(ctx, invoice))
	_, err = f.service.MarkInvoicePaid(ctx, invoice.Id, MarkPaidOpts{
		OrgId:   f.org.Id,
		Method:  models.PaymentMethodCard,
		PaidAt:  time.Now(),
		AmountP: models.Ptr(int64(1499)),
	})
	require.ErrorIs(t, err, ErrAmountMismatch)
}
