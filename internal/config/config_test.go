package config

import (
	"os"
	"path/filepath"
	"testing"

	"madrasah/internal/email"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()

	require.NoError(t, LoadFile(""))
	require.NoError(t, LoadFile(filepath.Join(dir, "missing.yaml")))
	require.Error(t, LoadFile(dir))

	path := filepath.Join(dir, "madrasah.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pause-threshold: 2\nsuspend-threshold: 4\nmysql-host: db.internal\n"), 0o600))
	require.NoError(t, LoadFile(path))
	require.Equal(t, "db.internal", viper.GetString(MysqlHost))

	config := GetLifecycleConfig()
	require.Equal(t, 2, config.PauseThreshold)
	require.Equal(t, 4, config.SuspendThreshold)
	require.NoError(t, config.Validate())
}

func TestGetMailer(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.Nil(t, GetMailer(nil))

	viper.Set(SmtpHostname, "smtp.example.org")
	smtpSender, ok := GetMailer(nil).(*email.SmtpSender)
	require.True(t, ok)
	require.Equal(t, "smtp.example.org", smtpSender.Smtp.Hostname)

	viper.Set(SendgridApiKey, "SG.key")
	sendgridSender, ok := GetMailer(nil).(*email.SendgridSender)
	require.True(t, ok)
	require.Equal(t, "SG.key", sendgridSender.ApiKey)
}
