package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/billing"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

// flakyStore fails class listing for a single org
type flakyStore struct {
	*memory.Store
	failOrgId string
}

func (s *flakyStore) ListClasses(ctx context.Context, orgId string) ([]models.Class, error) {
	if orgId == s.failOrgId {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListClasses(ctx, orgId)
}

func seedOrg(t *testing.T, st *memory.Store, slug string, status models.OrgStatus, students int) *models.Org {
	t.Helper()
	ctx := context.Background()
	org := &models.Org{Name: slug, Slug: slug, Settings: models.OrgSettings{FeeDueDay: models.Ptr(1)}}
	require.NoError(t, st.CreateOrg(ctx, org))
	if status != models.OrgStatusActive {
		next := org.Clone()
		next.Status = status
		require.NoError(t, st.UpdateOrgLifecycle(ctx, next, org.Status))
	}
	class := &models.Class{OrgId: org.Id, Name: "Quran", MonthlyFeeP: 3000}
	require.NoError(t, st.CreateClass(ctx, class))
	for i := 0; i < students; i++ {
		student := &models.Student{OrgId: org.Id, FirstName: "Student", LastName: string(rune('A' + i))}
		require.NoError(t, st.CreateStudent(ctx, student))
		require.NoError(t, st.CreateMonthlyRecord(ctx, &models.MonthlyPaymentRecord{
			OrgId: org.Id, StudentId: student.Id, ClassId: class.Id, Month: "2025-01", AmountP: 3000, Status: models.PaymentStatusPending,
		}))
	}
	return org
}

func TestStatusJob_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	alpha := seedOrg(t, st, "alpha", models.OrgStatusActive, 2)
	bravo := seedOrg(t, st, "bravo", models.OrgStatusSuspended, 1)
	charlie := seedOrg(t, st, "charlie", models.OrgStatusActive, 3)
	seedOrg(t, st, "delta", models.OrgStatusDeactivated, 4)

	flaky := &flakyStore{Store: st, failOrgId: charlie.Id}
	job := &StatusJob{
		Store:       flaky,
		Billing:     &billing.Service{Store: flaky, ServiceLogs: common.GetNoopServiceLog()},
		Concurrency: 2,
		ServiceLogs: common.GetNoopServiceLog(),
	}
	now := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	report, err := job.Run(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 3, report.Orgs)
	require.Equal(t, 2, report.Succeeded)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 3, report.Updated)
	require.Len(t, report.Results, 3)
	require.Equal(t, "charlie", report.Results[2].Slug)
	require.Contains(t, report.Results[2].Error, "connection reset")

	records, err := st.ListMonthlyRecords(ctx, alpha.Id, store.RecordFilter{})
	require.NoError(t, err)
	for _, record := range records {
		require.Equal(t, models.PaymentStatusOverdue, record.Status)
	}
	records, err = st.ListMonthlyRecords(ctx, bravo.Id, store.RecordFilter{})
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusOverdue, records[0].Status)

	again, err := job.Run(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 0, again.Updated)
}

func TestUsageJob_ReportsOperationalOrgs(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	alpha := seedOrg(t, st, "alpha", models.OrgStatusActive, 2)
	seedOrg(t, st, "bravo", models.OrgStatusPaused, 1)
	seedOrg(t, st, "charlie", models.OrgStatusSuspended, 3)

	job := &UsageJob{Store: st, Audit: &audit.StoreLogger{Store: st}, ServiceLogs: common.GetNoopServiceLog()}
	report, err := job.Run(ctx, time.Date(2025, time.February, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, report.Orgs)
	require.Equal(t, 2, report.Succeeded)
	require.Equal(t, 3, report.Updated)

	entries, err := st.ListAuditLogs(ctx, store.AuditFilter{OrgId: &alpha.Id})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionUsageReported, entries[0].Action)
	require.EqualValues(t, 2, entries[0].Data["activeStudents"])
}

func TestReportTable(t *testing.T) {
	report := &Report{
		Job:     UsageJobName,
		Orgs:    2,
		Updated: 12,
		Failed:  1,
		Results: []OrgOutcome{
			{OrgId: "org-1", Slug: "al-noor", Updated: 12},
			{OrgId: "org-2", Slug: "darul-ilm", Error: "connection reset"},
		},
	}
	output := ReportTable(report, "students").String()
	require.Contains(t, output, "al-noor")
	require.Contains(t, output, "connection reset")
	require.Contains(t, output, "2 orgs")
	require.Contains(t, output, "1 failed")
}
