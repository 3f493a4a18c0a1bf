package cli

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"login password=hunter2 ok", "login password=[REDACTED] ok"},
		{`{"token": "abc.def.ghi"}`, `{"token": "[REDACTED]"}`},
		{"GET /claim?code=K7P2QX9M&org=al-noor", "GET /claim?code=[REDACTED]&org=al-noor"},
		{"Stripe-Signature: t=1,v1=ff", "Stripe-Signature: [REDACTED],v1=ff"},
		{"org[al-noor] was paused", "org[al-noor] was paused"},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, Redact(c.in), c.in)
	}
}

func TestRedactHook(t *testing.T) {
	var output bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&output)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableQuote: true})
	logger.AddHook(&RedactHook{})

	logger.WithFields(logrus.Fields{
		"sessionToken": "abc",
		"path":         "/v1/claims?code=ABCD2345",
		"status":       200,
	}).Info("issued secret=shh")

	line := output.String()
	require.NotContains(t, line, "abc ")
	require.NotContains(t, line, "ABCD2345")
	require.NotContains(t, line, "shh")
	require.Contains(t, line, "sessionToken=[REDACTED]")
	require.Contains(t, line, "status=200")
}
