package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/notify"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	st       *memory.Store
	recorder *notify.Recorder
	manager  *Manager
	org      *models.Org
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	org := &models.Org{Name: "Al Noor", Slug: "al-noor"}
	require.NoError(t, st.CreateOrg(ctx, org))
	admin := &models.User{Email: "admin@alnoor.example", Name: "Admin"}
	require.NoError(t, st.CreateUser(ctx, admin))
	require.NoError(t, st.CreateMembership(ctx, &models.Membership{UserId: admin.Id, OrgId: org.Id, Role: models.RoleAdmin}))

	recorder := &notify.Recorder{}
	return fixture{
		st:       st,
		recorder: recorder,
		org:      org,
		manager: &Manager{
			Store:       st,
			Audit:       &audit.StoreLogger{Store: st},
			Notifier:    recorder,
			Config:      Config{PauseThreshold: 3, SuspendThreshold: 6},
			ServiceLogs: common.GetNoopServiceLog(),
		},
	}
}

func (f fixture) auditActions(t *testing.T) []string {
	t.Helper()
	entries, err := f.st.ListAuditLogs(context.Background(), store.AuditFilter{OrgId: &f.org.Id, Limit: 100})
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		actions = append(actions, entries[i].Action)
	}
	return actions
}

var owner = &access.Principal{UserId: "owner-1", IsSuperAdmin: true}

func TestManager_FailuresPauseThenSuccessRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)

	expected := []models.OrgStatus{models.OrgStatusActive, models.OrgStatusActive, models.OrgStatusPaused}
	for i, status := range expected {
		result, err := f.manager.HandlePaymentFailure(ctx, f.org.Id, "card_declined", 4900, at.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.Equal(t, status, result.Org.Status)
		require.Equal(t, i+1, result.Org.PaymentFailureCount)
	}
	require.Len(t, f.auditActions(t), 3)
	require.Equal(t, audit.ActionOrgPaused, f.auditActions(t)[2])

	org, err := f.st.GetOrg(ctx, f.org.Id)
	require.NoError(t, err)
	require.Equal(t, models.OrgStatusPaused, org.Status)
	require.NotNil(t, org.PausedAt)
	require.Equal(t, "card_declined", *org.StatusReason)

	emails := f.recorder.Emails()
	require.Len(t, emails, 1)
	require.Equal(t, "admin@alnoor.example", emails[0].To[0].Address)
	require.Len(t, f.recorder.Alerts(), 3)

	result, err := f.manager.HandlePaymentSuccess(ctx, f.org.Id, 4900)
	require.NoError(t, err)
	require.True(t, result.Transition)
	require.Equal(t, models.OrgStatusPaused, result.Previous)

	org, err = f.st.GetOrg(ctx, f.org.Id)
	require.NoError(t, err)
	require.Equal(t, models.OrgStatusActive, org.Status)
	require.Zero(t, org.PaymentFailureCount)
	require.Nil(t, org.PausedAt)
	require.Nil(t, org.StatusReason)
	require.Equal(t, []string{
		audit.ActionOrgPaymentFailed,
		audit.ActionOrgPaymentFailed,
		audit.ActionOrgPaused,
		audit.ActionOrgReactivated,
	}, f.auditActions(t))
}

func TestManager_SuspendsAtSuspendThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var result *Result
	var err error
	for i := 0; i < 6; i++ {
		result, err = f.manager.HandlePaymentFailure(ctx, f.org.Id, "insufficient_funds", 4900, time.Now())
		require.NoError(t, err)
	}
	require.Equal(t, models.OrgStatusSuspended, result.Org.Status)
	require.Equal(t, models.OrgStatusPaused, result.Previous)
	require.NotNil(t, result.Org.SuspendedAt)

	result, err = f.manager.HandlePaymentFailure(ctx, f.org.Id, "insufficient_funds", 4900, time.Now())
	require.NoError(t, err)
	require.False(t, result.Transition)
	require.Equal(t, models.OrgStatusSuspended, result.Org.Status)
	require.Len(t, f.auditActions(t), 7)
}

func TestManager_SuccessOnActiveOrgOnlyResetsCounter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.HandlePaymentFailure(ctx, f.org.Id, "card_declined", 4900, time.Now())
	require.NoError(t, err)

	result, err := f.manager.HandlePaymentSuccess(ctx, f.org.Id, 4900)
	require.NoError(t, err)
	require.False(t, result.Transition)
	require.Equal(t, models.OrgStatusActive, result.Org.Status)
	require.Zero(t, result.Org.PaymentFailureCount)
	require.Equal(t, audit.ActionOrgPaymentSucceeded, f.auditActions(t)[1])
}

func TestManager_DeactivatedIsUntouchedByPaymentEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.manager.Deactivate(ctx, owner, f.org.Id, "terms_violation")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		result, err := f.manager.HandlePaymentFailure(ctx, f.org.Id, "card_declined", 4900, time.Now())
		require.NoError(t, err)
		require.Equal(t, models.OrgStatusDeactivated, result.Org.Status)
	}
	result, err := f.manager.HandlePaymentSuccess(ctx, f.org.Id, 4900)
	require.NoError(t, err)
	require.Equal(t, models.OrgStatusDeactivated, result.Org.Status)

	_, err = f.manager.Deactivate(ctx, owner, f.org.Id, "again")
	require.ErrorIs(t, err, ErrAlreadyDeactivated)
}

func TestManager_ManualEntryPointsAreOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := &access.Principal{UserId: "admin-1", OrgId: f.org.Id, OrgStatus: models.OrgStatusActive, Role: models.RoleAdmin}

	_, err := f.manager.Deactivate(ctx, admin, f.org.Id, "nope")
	require.ErrorIs(t, err, access.ErrForbidden)
	_, err = f.manager.Reactivate(ctx, nil, f.org.Id)
	require.ErrorIs(t, err, access.ErrUnauthenticated)

	_, err = f.manager.Deactivate(ctx, owner, f.org.Id, "fraud")
	require.NoError(t, err)
	org, err := f.st.GetOrg(ctx, f.org.Id)
	require.NoError(t, err)
	require.NotNil(t, org.DeactivatedAt)

	result, err := f.manager.Reactivate(ctx, owner, f.org.Id)
	require.NoError(t, err)
	require.True(t, result.Transition)
	org, err = f.st.GetOrg(ctx, f.org.Id)
	require.NoError(t, err)
	require.Equal(t, models.OrgStatusActive, org.Status)
	require.Nil(t, org.DeactivatedAt)
	require.Equal(t, []string{audit.ActionOrgDeactivated, audit.ActionOrgReactivated}, f.auditActions(t))
}

func TestManager_ConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.HandlePaymentFailure(ctx, f.org.Id, "card_declined", 4900, time.Now())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	org, err := f.st.GetOrg(ctx, f.org.Id)
	require.NoError(t, err)
	require.Equal(t, 10, org.PaymentFailureCount)
	require.Equal(t, models.OrgStatusSuspended, org.Status)
	require.Len(t, f.auditActions(t), 10)
}

func TestManager_UnknownOrg(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.HandlePaymentFailure(context.Background(), "missing", "x", 1, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Config{PauseThreshold: 3, SuspendThreshold: 6}.Validate())
	require.ErrorIs(t, Config{PauseThreshold: 0, SuspendThreshold: 6}.Validate(), ErrInvalidThresholds)
	require.ErrorIs(t, Config{PauseThreshold: 4, SuspendThreshold: 4}.Validate(), ErrInvalidThresholds)
}
