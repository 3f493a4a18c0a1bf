package giftaid

import (
	"bytes"
	"context"
	"testing"
	"time"

	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExporter_Build(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	orgId := "org-1"

	declared := &models.User{
		Email:           "fatima@example.com",
		Name:            "Fatima Begum",
		GiftAidDeclared: true,
		AddressLine:     models.Ptr("12 High Street, Leicester"),
		Postcode:        models.Ptr("le1 1aa"),
	}
	undeclared := &models.User{Email: "omar@example.com", Name: "Omar Ali"}
	require.NoError(t, st.CreateUser(ctx, declared))
	require.NoError(t, st.CreateUser(ctx, undeclared))

	aisha := &models.Student{OrgId: orgId, FirstName: "Aisha", LastName: "Begum", PrimaryParentId: &declared.Id}
	yusuf := &models.Student{OrgId: orgId, FirstName: "Yusuf", LastName: "Ali", PrimaryParentId: &undeclared.Id}
	require.NoError(t, st.CreateStudent(ctx, aisha))
	require.NoError(t, st.CreateStudent(ctx, yusuf))

	day := func(d int) time.Time { return time.Date(2025, time.April, d, 12, 0, 0, 0, time.UTC) }
	payments := []models.Payment{
		{OrgId: orgId, StudentId: aisha.Id, PayerId: &declared.Id, AmountP: 3000, Method: models.PaymentMethodCard, Outcome: models.PaymentOutcomeSucceeded, CreatedAt: day(10)},
		// attributed to the primary parent
		{OrgId: orgId, StudentId: aisha.Id, AmountP: 1550, Method: models.PaymentMethodCash, Outcome: models.PaymentOutcomeSucceeded, CreatedAt: day(5)},
		{OrgId: orgId, StudentId: aisha.Id, PayerId: &declared.Id, AmountP: 3000, Method: models.PaymentMethodCard, Outcome: models.PaymentOutcomeFailed, CreatedAt: day(6)},
		{OrgId: orgId, StudentId: yusuf.Id, PayerId: &undeclared.Id, AmountP: 3000, Method: models.PaymentMethodCard, Outcome: models.PaymentOutcomeSucceeded, CreatedAt: day(7)},
		{OrgId: orgId, StudentId: aisha.Id, PayerId: &declared.Id, AmountP: 3000, Method: models.PaymentMethodCard, Outcome: models.PaymentOutcomeSucceeded, CreatedAt: day(28)},
		{OrgId: "org-2", StudentId: aisha.Id, PayerId: &declared.Id, AmountP: 9900, Method: models.PaymentMethodCard, Outcome: models.PaymentOutcomeSucceeded, CreatedAt: day(8)},
	}
	for i := range payments {
		require.NoError(t, st.CreatePayment(ctx, &payments[i]))
	}

	exporter := &Exporter{Store: st, ServiceLogs: common.GetNoopServiceLog()}
	schedule, err := exporter.Build(ctx, orgId, day(1), day(20))
	require.NoError(t, err)
	require.Len(t, schedule.Rows, 2)
	require.Equal(t, 1, schedule.SkippedCount)
	require.Equal(t, int64(4550), schedule.TotalP)

	first := schedule.Rows[0]
	require.Equal(t, int64(1550), first.AmountP)
	require.Equal(t, "Fatima", first.FirstName)
	require.Equal(t, "Begum", first.LastName)
	require.Equal(t, "12", first.House)
	require.Equal(t, "LE1 1AA", first.Postcode)
	require.Equal(t, "Aisha Begum", first.StudentName)

	var buffer bytes.Buffer
	require.NoError(t, schedule.Write(&buffer))
	workbook, err := excelize.OpenReader(&buffer)
	require.NoError(t, err)
	defer workbook.Close()
	rows, err := workbook.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Headers[0], rows[0][0])
	require.Equal(t, "Fatima", rows[1][1])
	require.Equal(t, "05/04/25", rows[1][7])
	require.Equal(t, "15.50", rows[1][8])
	require.Equal(t, "giftaid_al-noor_20250401_20250420.xlsx", schedule.FileName("al-noor"))
}

func TestExporter_RejectsInvertedRange(t *testing.T) {
	exporter := &Exporter{Store: memory.New()}
	now := time.Now()
	_, err := exporter.Build(context.Background(), "org-1", now, now.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)
}
