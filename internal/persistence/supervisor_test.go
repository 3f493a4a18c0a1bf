package persistence

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSupervisor(connect, ping func() error) *supervisor {
	s := newSupervisor("test", "unit", 5*time.Millisecond, 5*time.Millisecond, nil)
	s.connect = connect
	s.ping = ping
	return s
}

func TestSupervisor_InitFailsOnConnectError(t *testing.T) {
	s := newTestSupervisor(
		func() error { return errors.New("refused") },
		func() error { return nil },
	)
	require.Error(t, s.init())
	require.Equal(t, StatusCodeConnectError, s.GetStatus().GetCode())
	require.Error(t, s.GetStatus().Check())
}

func TestSupervisor_ReconnectsAfterPingFailure(t *testing.T) {
	var failing atomic.Bool
	var connects atomic.Int32
	s := newTestSupervisor(
		func() error {
			connects.Add(1)
			return nil
		},
		func() error {
			if failing.Load() {
				return errors.New("gone away")
			}
			return nil
		},
	)
	require.NoError(t, s.init())
	defer s.shutdown()
	require.NoError(t, s.GetStatus().Check())

	failing.Store(true)
	require.Eventually(t, func() bool {
		return s.GetStatus().GetCode() == StatusCodePingError
	}, time.Second, time.Millisecond)

	failing.Store(false)
	require.Eventually(t, func() bool {
		return s.GetStatus().Check() == nil
	}, time.Second, time.Millisecond)
	require.GreaterOrEqual(t, connects.Load(), int32(2))
}

func TestSupervisor_ShutdownStopsLoop(t *testing.T) {
	s := newTestSupervisor(func() error { return nil }, func() error { return nil })
	require.NoError(t, s.init())
	require.True(t, s.shutdown())
	require.Equal(t, StatusCodeShuttingDown, s.GetStatus().GetCode())
	require.False(t, s.shutdown())
}
