package calendar

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"madrasah/internal/models"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

func TestBuilder_FeeEvents(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	org := &models.Org{Name: "Al Noor", Slug: "al-noor", Settings: models.OrgSettings{FeeDueDay: models.Ptr(10), Timezone: "Europe/London"}}
	require.NoError(t, st.CreateOrg(ctx, org))
	quran := &models.Class{OrgId: org.Id, Name: "Quran 1", MonthlyFeeP: 3000}
	arabic := &models.Class{OrgId: org.Id, Name: "Arabic", MonthlyFeeP: 2500, FeeDueDay: models.Ptr(20)}
	require.NoError(t, st.CreateClass(ctx, quran))
	require.NoError(t, st.CreateClass(ctx, arabic))

	parentId := "parent-1"
	mine := &models.Student{OrgId: org.Id, FirstName: "Aisha", LastName: "Khan", PrimaryParentId: &parentId}
	other := &models.Student{OrgId: org.Id, FirstName: "Yusuf", LastName: "Ali"}
	require.NoError(t, st.CreateStudent(ctx, mine))
	require.NoError(t, st.CreateStudent(ctx, other))

	records := []*models.MonthlyPaymentRecord{
		{OrgId: org.Id, StudentId: mine.Id, ClassId: quran.Id, Month: "2025-05", AmountP: 3000, Status: models.PaymentStatusPending},
		{OrgId: org.Id, StudentId: mine.Id, ClassId: arabic.Id, Month: "2025-04", AmountP: 2500, Status: models.PaymentStatusOverdue},
		{OrgId: org.Id, StudentId: mine.Id, ClassId: quran.Id, Month: "2025-04", AmountP: 3000, Status: models.PaymentStatusPaid},
		{OrgId: org.Id, StudentId: other.Id, ClassId: quran.Id, Month: "2025-05", AmountP: 3000, Status: models.PaymentStatusPending},
	}
	for _, record := range records {
		require.NoError(t, st.CreateMonthlyRecord(ctx, record))
	}
	require.NoError(t, st.CreateInvoice(ctx, &models.Invoice{
		OrgId:       org.Id,
		StudentId:   mine.Id,
		AmountP:     1500,
		Description: "Trip, Eid party",
		DueDate:     time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC),
		Status:      models.InvoiceStatusPending,
	}))

	builder := &Builder{Store: st}
	now := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	events, err := builder.FeeEvents(ctx, org.Id, Options{ParentId: &parentId, Now: now})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "20250420", events[0].Date.Format(dateValue))
	require.Contains(t, events[0].Summary, "Arabic fee due: Aisha Khan (£25.00)")
	require.Equal(t, "20250501", events[1].Date.Format(dateValue))
	require.Contains(t, events[1].Summary, "Invoice due")
	require.Equal(t, "20250510", events[2].Date.Format(dateValue))

	all, err := builder.FeeEvents(ctx, org.Id, Options{Now: now})
	require.NoError(t, err)
	require.Len(t, all, 4)

	nobody := "parent-2"
	none, err := builder.FeeEvents(ctx, org.Id, Options{ParentId: &nobody, Now: now})
	require.NoError(t, err)
	require.Empty(t, none)

	var buffer bytes.Buffer
	require.NoError(t, Write(&buffer, "Al Noor fees", events, now))
	output := buffer.String()
	require.True(t, strings.HasPrefix(output, "BEGIN:VCALENDAR\r\n"))
	require.True(t, strings.HasSuffix(output, "END:VCALENDAR\r\n"))
	require.Equal(t, 3, strings.Count(output, "BEGIN:VEVENT"))
	require.Contains(t, output, "DTSTART;VALUE=DATE:20250420\r\n")
	require.Contains(t, output, "DESCRIPTION:Trip\\, Eid party\r\n")
}

func TestFold(t *testing.T) {
	short := "SUMMARY:short"
	require.Equal(t, short, fold(short))

	long := "SUMMARY:" + strings.Repeat("é", 60)
	folded := fold(long)
	for _, line := range strings.Split(folded, "\r\n") {
		require.LessOrEqual(t, len(line), lineLimit)
	}
	require.Equal(t, long, strings.ReplaceAll(folded, "\r\n ", ""))
}
