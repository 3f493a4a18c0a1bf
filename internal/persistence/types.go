package persistence

import (
	"fmt"
	"sync"
	"time"
)

type statusCode string

const (
	StatusCodeConnectError statusCode = "connect_error"
	StatusCodeInitialising statusCode = "init"
	StatusCodeShuttingDown statusCode = "shutdown"
	StatusCodeOk           statusCode = "ok"
	StatusCodePingError    statusCode = "ping_error"
)

type Status struct {
	code          statusCode
	lastChangedAt time.Time
	err           error
	mutex         sync.Mutex
}

func newStatus() *Status {
	return &Status{
		code:          StatusCodeInitialising,
		lastChangedAt: time.Now(),
	}
}

func (ms *Status) GetCode() statusCode {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.code
}

func (ms *Status) GetError() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.err
}

func (ms *Status) GetLastChangedAt() time.Time {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.lastChangedAt
}

// Check returns nil only when the connection is healthy, it is
// shaped for use as a readiness probe
func (ms *Status) Check() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	if ms.code == StatusCodeOk {
		return nil
	}
	if ms.err != nil {
		return fmt.Errorf("status[%s]: %w", ms.code, ms.err)
	}
	return fmt.Errorf("status[%s]", ms.code)
}

func (ms *Status) set(code statusCode, err error) {
	ms.mutex.Lock()
	if code != ms.code {
		ms.lastChangedAt = time.Now()
	}
	ms.code = code
	ms.err = err
	ms.mutex.Unlock()
}
