package cli

import (
	"fmt"
	"regexp"
	"strings"

	"madrasah/internal/common"

	"github.com/sirupsen/logrus"
)

// RedactedKeys are the field names and message keys whose values never
// reach the logs when redaction is on
var RedactedKeys = []string{"password", "token", "secret", "code", "signature"}

const redactedValue = "[REDACTED]"

var redactPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(RedactedKeys, "|") + `)(["']?\s*[:=]\s*["']?)([^\s"'&,]+)`)

// InitLogging sets the logrus level and formatter; redact installs a hook
// that masks credentials in messages and fields
func InitLogging(logLevel string, redact bool) {
	switch logLevel {
	case common.LogLevelTrace:
		logrus.SetLevel(logrus.TraceLevel)
	case common.LogLevelDebug:
		logrus.SetLevel(logrus.DebugLevel)
	case common.LogLevelInfo:
		logrus.SetLevel(logrus.InfoLevel)
	case common.LogLevelWarn:
		logrus.SetLevel(logrus.WarnLevel)
	case common.LogLevelError:
		logrus.SetLevel(logrus.ErrorLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if redact {
		logrus.AddHook(&RedactHook{})
	}
}

// RedactHook masks the values of RedactedKeys in the entry message
// (key=value and key: value forms) and in structured fields
type RedactHook struct{}

func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *RedactHook) Fire(entry *logrus.Entry) error {
	entry.Message = Redact(entry.Message)
	for key := range entry.Data {
		if isRedactedKey(key) {
			entry.Data[key] = redactedValue
			continue
		}
		if value, ok := entry.Data[key].(string); ok {
			entry.Data[key] = Redact(value)
		}
	}
	return nil
}

// Redact returns message with every credential value masked
func Redact(message string) string {
	return redactPattern.ReplaceAllString(message, fmt.Sprintf("${1}${2}%s", redactedValue))
}

func isRedactedKey(key string) bool {
	key = strings.ToLower(key)
	for _, redacted := range RedactedKeys {
		if strings.Contains(key, redacted) {
			return true
		}
	}
	return false
}
