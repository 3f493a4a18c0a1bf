package persistence

import (
	"fmt"
	"sync"
	"time"

	"madrasah/internal/common"
)

// supervisor keeps a connection healthy in the background by pinging
// it on every healthcheck interval and reconnecting once a ping or
// connect fails
type supervisor struct {
	kind string
	id   string

	healthcheckInterval time.Duration
	retryInterval       time.Duration

	connect func() error
	ping    func() error

	retryCount int
	retryLock  sync.Mutex

	stop        chan struct{}
	stopOnce    sync.Once
	serviceLogs chan<- common.ServiceLog
	status      *Status
}

func newSupervisor(kind, id string, healthcheckInterval, retryInterval time.Duration, serviceLogs chan<- common.ServiceLog) *supervisor {
	if serviceLogs == nil {
		serviceLogs = common.GetNoopServiceLog()
	}
	return &supervisor{
		kind:                kind,
		id:                  getAppName(id),
		healthcheckInterval: orDefault(healthcheckInterval, DefaultHealthcheckInterval),
		retryInterval:       orDefault(retryInterval, DefaultRetryInterval),
		stop:                make(chan struct{}),
		serviceLogs:         serviceLogs,
		status:              newStatus(),
	}
}

func (s *supervisor) GetId() string {
	return s.id
}

func (s *supervisor) GetStatus() *Status {
	return s.status
}

// init performs the first connection synchronously and starts the
// background loop only when it succeeds
func (s *supervisor) init() error {
	s.serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "%s[%s] is initialising...", s.kind, s.id)
	if err := s.connect(); err != nil {
		s.status.set(StatusCodeConnectError, err)
		return fmt.Errorf("%s[%s] failed to connect: %w", s.kind, s.id, err)
	}
	if err := s.ping(); err != nil {
		s.status.set(StatusCodePingError, err)
		return fmt.Errorf("%s[%s] failed to ping: %w", s.kind, s.id, err)
	}
	s.status.set(StatusCodeOk, nil)
	go s.run()
	return nil
}

func (s *supervisor) run() {
	s.serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "%s[%s] supervisor starting...", s.kind, s.id)
	for {
		wait := s.healthcheckInterval
		switch s.status.GetCode() {
		case StatusCodeShuttingDown:
			return
		case StatusCodeConnectError, StatusCodePingError:
			if s.reconnect() != nil {
				wait = s.retryInterval
			}
		default:
			if err := s.ping(); err != nil {
				s.status.set(StatusCodePingError, err)
				s.serviceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to ping %s[%s]: %s", s.kind, s.id, err)
			} else {
				s.status.set(StatusCodeOk, nil)
			}
		}
		select {
		case <-s.stop:
			return
		case <-time.After(wait):
		}
	}
}

func (s *supervisor) reconnect() error {
	s.retryLock.Lock()
	defer s.retryLock.Unlock()
	if err := s.connect(); err != nil {
		s.retryCount++
		s.status.set(StatusCodeConnectError, err)
		s.serviceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to reconnect to %s[%s] after %v attempts: %s", s.kind, s.id, s.retryCount, err)
		return err
	}
	if err := s.ping(); err != nil {
		s.retryCount++
		s.status.set(StatusCodePingError, err)
		s.serviceLogs <- common.ServiceLogf(common.LogLevelWarn, "failed to ping %s[%s] on reconnection after %v attempts: %s", s.kind, s.id, s.retryCount, err)
		return err
	}
	s.serviceLogs <- common.ServiceLogf(common.LogLevelInfo, "reconnected to %s[%s] after %v attempts", s.kind, s.id, s.retryCount+1)
	s.retryCount = 0
	s.status.set(StatusCodeOk, nil)
	return nil
}

// shutdown stops the background loop and reports whether the
// connection was healthy, callers close the client only when it was
func (s *supervisor) shutdown() bool {
	s.serviceLogs <- common.ServiceLogf(common.LogLevelDebug, "shutting down %s[%s] connection...", s.kind, s.id)
	wasOk := s.status.GetCode() == StatusCodeOk
	s.status.set(StatusCodeShuttingDown, nil)
	s.stopOnce.Do(func() { close(s.stop) })
	return wasOk
}
