package common

import "time"

const (
	DefaultDurationConnectionTimeout = 10 * time.Second
	DefaultDurationShutdownTimeout   = 15 * time.Second
)

const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var LogLevels = []string{
	LogLevelTrace,
	LogLevelDebug,
	LogLevelInfo,
	LogLevelWarn,
	LogLevelError,
}
