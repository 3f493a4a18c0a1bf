package billing

import (
	"testing"
	"time"

	"madrasah/internal/models"

	"github.com/stretchr/testify/require"
)

func TestCalculatePaymentStatus(t *testing.T) {
	dueDay := 15
	dueInstant := time.Date(2025, time.January, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	paidAt := dueInstant.Add(-24 * time.Hour)

	testCases := []struct {
		name      string
		current   models.PaymentStatus
		month     string
		feeDueDay *int
		paidAt    *time.Time
		now       time.Time
		expected  models.PaymentStatus
	}{
		{
			name:      "before the due instant",
			current:   models.PaymentStatusPending,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       dueInstant.Add(-time.Hour),
			expected:  models.PaymentStatusPending,
		},
		{
			name:      "exactly 48 hours past due is still pending",
			current:   models.PaymentStatusPending,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       time.Date(2025, time.January, 17, 23, 59, 59, int(999*time.Millisecond), time.UTC),
			expected:  models.PaymentStatusPending,
		},
		{
			name:      "just over 48 hours past due is late",
			current:   models.PaymentStatusPending,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       dueInstant.Add(LateAfter + time.Millisecond),
			expected:  models.PaymentStatusLate,
		},
		{
			name:      "exactly 96 hours past due is still late",
			current:   models.PaymentStatusLate,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       time.Date(2025, time.January, 19, 23, 59, 59, int(999*time.Millisecond), time.UTC),
			expected:  models.PaymentStatusLate,
		},
		{
			name:      "just over 96 hours past due is overdue",
			current:   models.PaymentStatusLate,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       dueInstant.Add(OverdueAfter + time.Millisecond),
			expected:  models.PaymentStatusOverdue,
		},
		{
			name:      "paid at wins over lateness",
			current:   models.PaymentStatusOverdue,
			month:     "2025-01",
			feeDueDay: &dueDay,
			paidAt:    &paidAt,
			now:       dueInstant.Add(30 * 24 * time.Hour),
			expected:  models.PaymentStatusPaid,
		},
		{
			name:      "paid status is sticky",
			current:   models.PaymentStatusPaid,
			month:     "2025-01",
			feeDueDay: &dueDay,
			now:       dueInstant.Add(30 * 24 * time.Hour),
			expected:  models.PaymentStatusPaid,
		},
		{
			name:     "no due day keeps the current status",
			current:  models.PaymentStatusLate,
			month:    "2025-01",
			now:      dueInstant.Add(30 * 24 * time.Hour),
			expected: models.PaymentStatusLate,
		},
		{
			name:      "due day past month end rolls into next month",
			current:   models.PaymentStatusPending,
			month:     "2025-02",
			feeDueDay: models.Ptr(31),
			now:       time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC),
			expected:  models.PaymentStatusPending,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := CalculatePaymentStatus(tc.current, tc.month, tc.feeDueDay, tc.paidAt, tc.now)
			require.NoError(t, err)
			require.Equal(t, tc.expected, status)
		})
	}
}

func TestCalculatePaymentStatus_InvalidMonth(t *testing.T) {
	status, err := CalculatePaymentStatus(models.PaymentStatusLate, "January", models.Ptr(15), nil, time.Now())
	require.ErrorIs(t, err, ErrInvalidMonth)
	require.Equal(t, models.PaymentStatusLate, status)
}

func TestCalculatePaymentStatus_IsIdempotent(t *testing.T) {
	now := time.Date(2025, time.January, 18, 8, 0, 0, 0, time.UTC)
	first, err := CalculatePaymentStatus(models.PaymentStatusPending, "2025-01", models.Ptr(15), nil, now)
	require.NoError(t, err)
	second, err := CalculatePaymentStatus(first, "2025-01", models.Ptr(15), nil, now)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusLate, first)
	require.Equal(t, first, second)
}

func TestCalculatePaymentStatus_UsesLocationOfNow(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	// 2025-07-18 00:30 in London is still before the UTC-anchored late
	// instant, but after the London one
	now := time.Date(2025, time.July, 18, 0, 30, 0, 0, london)
	status, err := CalculatePaymentStatus(models.PaymentStatusPending, "2025-07", models.Ptr(15), nil, now)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusLate, status)

	status, err = CalculatePaymentStatus(models.PaymentStatusPending, "2025-07", models.Ptr(15), nil, now.UTC())
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPending, status)
}

func TestResolveFeeDueDay(t *testing.T) {
	settings := models.OrgSettings{FeeDueDay: models.Ptr(5)}
	require.Equal(t, 20, *ResolveFeeDueDay(models.Class{FeeDueDay: models.Ptr(20)}, settings))
	require.Equal(t, 5, *ResolveFeeDueDay(models.Class{}, settings))
	require.Nil(t, ResolveFeeDueDay(models.Class{}, models.OrgSettings{}))
}

func TestCalculateInvoiceStatus(t *testing.T) {
	due := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	paidAt := due
	testCases := []struct {
		name     string
		invoice  models.Invoice
		now      time.Time
		expected models.InvoiceStatus
	}{
		{"pending before due", models.Invoice{Status: models.InvoiceStatusPending, DueDate: due}, due.Add(-time.Hour), models.InvoiceStatusPending},
		{"overdue after due", models.Invoice{Status: models.InvoiceStatusPending, DueDate: due}, due.Add(time.Hour), models.InvoiceStatusOverdue},
		{"paid at wins", models.Invoice{Status: models.InvoiceStatusOverdue, DueDate: due, PaidAt: &paidAt}, due.Add(time.Hour), models.InvoiceStatusPaid},
		{"cancelled stays", models.Invoice{Status: models.InvoiceStatusCancelled, DueDate: due}, due.Add(time.Hour), models.InvoiceStatusCancelled},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, CalculateInvoiceStatus(tc.invoice, tc.now))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 3000: "30.00", 1234567: "12345.67", -250: "-2.50"}
	for amount, expected := range cases {
		require.Equal(t, expected, FormatAmount(amount))
	}
}
