package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrg(t *testing.T, st *Store, slug string) *models.Org {
	t.Helper()
	org := &models.Org{Name: slug, Slug: slug}
	require.NoError(t, st.CreateOrg(context.Background(), org))
	return org
}

func TestStore_Orgs(t *testing.T) {
	t.Run("create assigns id and defaults to active", func(t *testing.T) {
		st := New()
		org := seedOrg(t, st, "al-noor")
		require.NotEmpty(t, org.Id)
		require.Equal(t, models.OrgStatusActive, org.Status)
	})

	t.Run("duplicate slug is rejected", func(t *testing.T) {
		st := New()
		seedOrg(t, st, "al-noor")
		err := st.CreateOrg(context.Background(), &models.Org{Name: "Other", Slug: "al-noor"})
		require.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("returned org is a copy", func(t *testing.T) {
		st := New()
		org := seedOrg(t, st, "al-noor")
		got, err := st.GetOrg(context.Background(), org.Id)
		require.NoError(t, err)
		got.Name = "mutated"
		again, err := st.GetOrg(context.Background(), org.Id)
		require.NoError(t, err)
		require.Equal(t, "al-noor", again.Name)
	})

	t.Run("lookup by stripe customer", func(t *testing.T) {
		st := New()
		org := seedOrg(t, st, "al-noor")
		st.SetStripeCustomer(org.Id, "cus_123")
		got, err := st.GetOrgByStripeCustomer(context.Background(), "cus_123")
		require.NoError(t, err)
		require.Equal(t, org.Id, got.Id)
		_, err = st.GetOrgByStripeCustomer(context.Background(), "cus_missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStore_IncrementPaymentFailuresIsAtomic(t *testing.T) {
	st := New()
	org := seedOrg(t, st, "al-noor")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.IncrementPaymentFailures(ctx, org.Id, time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.GetOrg(ctx, org.Id)
	require.NoError(t, err)
	require.Equal(t, 50, got.PaymentFailureCount)
	require.NotNil(t, got.LastPaymentFailureAt)

	require.NoError(t, st.ResetPaymentFailures(ctx, org.Id))
	got, err = st.GetOrg(ctx, org.Id)
	require.NoError(t, err)
	require.Equal(t, 0, got.PaymentFailureCount)
}

func TestStore_UpdateOrgLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("applies when expected status matches", func(t *testing.T) {
		st := New()
		org := seedOrg(t, st, "al-noor")
		now := time.Now()
		org.Status = models.OrgStatusPaused
		org.PausedAt = &now
		require.NoError(t, st.UpdateOrgLifecycle(ctx, *org, models.OrgStatusActive))

		got, err := st.GetOrg(ctx, org.Id)
		require.NoError(t, err)
		require.Equal(t, models.OrgStatusPaused, got.Status)
		require.NotNil(t, got.PausedAt)
	})

	t.Run("conflicts when status has moved on", func(t *testing.T) {
		st := New()
		org := seedOrg(t, st, "al-noor")
		org.Status = models.OrgStatusSuspended
		err := st.UpdateOrgLifecycle(ctx, *org, models.OrgStatusPaused)
		require.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("unknown org", func(t *testing.T) {
		st := New()
		err := st.UpdateOrgLifecycle(ctx, models.Org{Id: "missing"}, models.OrgStatusActive)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestStore_TenantScoping(t *testing.T) {
	ctx := context.Background()
	st := New()
	orgA := seedOrg(t, st, "org-a")
	orgB := seedOrg(t, st, "org-b")

	student := &models.Student{OrgId: orgA.Id, FirstName: "Aisha", LastName: "Khan"}
	require.NoError(t, st.CreateStudent(ctx, student))
	require.Equal(t, models.ClaimStatusNotClaimed, student.ClaimStatus)

	_, err := st.GetStudent(ctx, orgB.Id, student.Id)
	require.ErrorIs(t, err, store.ErrNotFound)

	class := &models.Class{OrgId: orgB.Id, Name: "Quran 1"}
	require.NoError(t, st.CreateClass(ctx, class))

	err = st.CreateEnrollment(ctx, &models.Enrollment{OrgId: orgA.Id, ClassId: class.Id, StudentId: student.Id})
	require.ErrorIs(t, err, store.ErrNotFound)

	students, err := st.ListStudents(ctx, orgB.Id, store.StudentFilter{})
	require.NoError(t, err)
	require.Empty(t, students)
}

func TestStore_MonthlyRecordUniqueness(t *testing.T) {
	ctx := context.Background()
	st := New()
	org := seedOrg(t, st, "al-noor")
	record := func() *models.MonthlyPaymentRecord {
		return &models.MonthlyPaymentRecord{
			OrgId:     org.Id,
			StudentId: "student-1",
			ClassId:   "class-1",
			Month:     "2025-01",
			AmountP:   3000,
			Status:    models.PaymentStatusPending,
		}
	}
	require.NoError(t, st.CreateMonthlyRecord(ctx, record()))
	require.ErrorIs(t, st.CreateMonthlyRecord(ctx, record()), store.ErrDuplicate)

	month := "2025-01"
	records, err := st.ListMonthlyRecords(ctx, org.Id, store.RecordFilter{Month: &month, UnpaidOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = st.ListMonthlyRecords(ctx, org.Id, store.RecordFilter{StudentIds: []string{}})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestStore_UpdateMonthlyRecordStatus(t *testing.T) {
	ctx := context.Background()
	st := New()
	org := seedOrg(t, st, "al-noor")
	record := &models.MonthlyPaymentRecord{OrgId: org.Id, StudentId: "student-1", ClassId: "class-1", Month: "2025-01", AmountP: 3000, Status: models.PaymentStatusPending}
	require.NoError(t, st.CreateMonthlyRecord(ctx, record))

	require.NoError(t, st.UpdateMonthlyRecordStatus(ctx, org.Id, record.Id, models.PaymentStatusPending, models.PaymentStatusLate))
	require.ErrorIs(t, st.UpdateMonthlyRecordStatus(ctx, org.Id, record.Id, models.PaymentStatusPending, models.PaymentStatusOverdue), store.ErrConflict)
	require.ErrorIs(t, st.UpdateMonthlyRecordStatus(ctx, "other-org", record.Id, models.PaymentStatusLate, models.PaymentStatusOverdue), store.ErrNotFound)

	paidAt := time.Now()
	record.PaidAt = &paidAt
	require.NoError(t, st.SettleMonthlyRecord(ctx, *record, &models.Payment{OrgId: org.Id, AmountP: 3000}))
	require.ErrorIs(t, st.UpdateMonthlyRecordStatus(ctx, org.Id, record.Id, models.PaymentStatusLate, models.PaymentStatusOverdue), store.ErrConflict)

	got, err := st.GetMonthlyRecord(ctx, org.Id, record.Id)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, got.Status)
}

func TestStore_SettleMonthlyRecordOnlyOnce(t *testing.T) {
	ctx := context.Background()
	st := New()
	org := seedOrg(t, st, "al-noor")
	record := &models.MonthlyPaymentRecord{OrgId: org.Id, StudentId: "student-1", ClassId: "class-1", Month: "2025-01", AmountP: 3000, Status: models.PaymentStatusLate}
	require.NoError(t, st.CreateMonthlyRecord(ctx, record))
	paidAt := time.Now()
	record.PaidAt = &paidAt

	var wg sync.WaitGroup
	var mu sync.Mutex
	settled, conflicts := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.SettleMonthlyRecord(ctx, *record, &models.Payment{OrgId: org.Id, RecordId: &record.Id, AmountP: 3000})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				settled++
				return
			}
			assert.ErrorIs(t, err, store.ErrConflict)
			conflicts++
		}()
	}
	wg.Wait()
	require.Equal(t, 1, settled)
	require.Equal(t, 19, conflicts)

	payments, err := st.ListPayments(ctx, org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestStore_SettleInvoice(t *testing.T) {
	ctx := context.Background()
	st := New()
	org := seedOrg(t, st, "al-noor")
	student := &models.Student{OrgId: org.Id, FirstName: "Aisha", LastName: "Khan"}
	require.NoError(t, st.CreateStudent(ctx, student))
	cancelled := &models.Invoice{OrgId: org.Id, StudentId: student.Id, AmountP: 500, Status: models.InvoiceStatusCancelled}
	require.NoError(t, st.CreateInvoice(ctx, cancelled))

	err := st.SettleInvoice(ctx, *cancelled, &models.Payment{OrgId: org.Id, AmountP: 500})
	require.ErrorIs(t, err, store.ErrConflict)
	require.ErrorIs(t, st.UpdateInvoiceStatus(ctx, org.Id, cancelled.Id, models.InvoiceStatusPending, models.InvoiceStatusOverdue), store.ErrConflict)

	payments, err := st.ListPayments(ctx, org.Id, store.PaymentFilter{})
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestStore_ClaimCodeLookup(t *testing.T) {
	ctx := context.Background()
	st := New()
	org := seedOrg(t, st, "al-noor")
	code := "ABCD2345"
	student := &models.Student{OrgId: org.Id, FirstName: "Yusuf", LastName: "Ali", ClaimCode: &code}
	require.NoError(t, st.CreateStudent(ctx, student))

	got, err := st.GetStudentByClaimCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, student.Id, got.Id)

	other := &models.Student{OrgId: org.Id, FirstName: "Maryam", LastName: "Ali", ClaimCode: &code}
	require.ErrorIs(t, st.CreateStudent(ctx, other), store.ErrDuplicate)
}

func TestStore_AuditLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := New()
	orgId := "org-1"
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.CreateAuditLog(ctx, &models.AuditLog{
			OrgId:     &orgId,
			Action:    "org.paused",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, st.CreateAuditLog(ctx, &models.AuditLog{Action: "platform.event"}))

	logs, err := st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &orgId, Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.True(t, logs[0].CreatedAt.After(logs[1].CreatedAt))
}
