package audit

import (
	"context"
	"errors"
	"testing"

	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
	"madrasah/internal/store/memory"

	"github.com/stretchr/testify/require"
)

type failingLogger struct{}

func (failingLogger) Log(context.Context, models.AuditLog) error {
	return errors.New("mirror down")
}

func (failingLogger) List(context.Context, store.AuditFilter) ([]models.AuditLog, error) {
	return nil, errors.New("mirror down")
}

func TestTee_MirrorFailureDoesNotFailCaller(t *testing.T) {
	st := memory.New()
	tee := &Tee{
		Primary:     &StoreLogger{Store: st},
		Mirror:      failingLogger{},
		ServiceLogs: common.GetNoopServiceLog(),
	}
	orgId := "org-1"
	require.NoError(t, tee.Log(context.Background(), NewEntry(&orgId, nil, ActionOrgPaused, TargetOrg, orgId, nil)))

	entries, err := tee.List(context.Background(), store.AuditFilter{OrgId: &orgId})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ActionOrgPaused, entries[0].Action)
}

func TestStoreLogger_Uninitialised(t *testing.T) {
	logger := &StoreLogger{}
	require.ErrorIs(t, logger.Log(context.Background(), models.AuditLog{}), ErrorNotInitialized)
}

func TestInterpret(t *testing.T) {
	actor := "user-1"
	testCases := []struct {
		entry    models.AuditLog
		expected string
	}{
		{
			entry:    models.AuditLog{Action: ActionOrgDeactivated, Data: map[string]any{"reason": "fraud"}},
			expected: "Organisation deactivated (fraud)",
		},
		{
			entry:    models.AuditLog{Action: ActionInvoicePaid, TargetId: "inv-1"},
			expected: "Marked invoice (ID: inv-1) as paid",
		},
		{
			entry:    models.AuditLog{Action: ActionClassCreated, ActorId: &actor, TargetType: TargetClass, TargetId: "c-1"},
			expected: "Actor[user-1] performed action[class.created] on class[c-1]",
		},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, Interpret(tc.entry))
	}
}
