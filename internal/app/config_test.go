package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 3, cfg.Bot.MaxRetry)
	require.Equal(t, 2*time.Minute, cfg.Bot.PromptTimeout)
	require.Equal(t, []time.Duration{24 * time.Hour, 2 * time.Hour}, cfg.Notify.ReminderWindows)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9001
  log_level: debug
bot:
  max_retry: 5
groups:
  static-one:
    channel_id: chan-1
    leaders: [leader-1]
    worlds: [Aether, Crystal]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 5, cfg.Bot.MaxRetry)

	group, ok := cfg.Groups["static-one"]
	require.True(t, ok)
	require.Equal(t, "chan-1", group.ChannelID)
	require.Equal(t, []string{"Aether", "Crystal"}, group.Worlds)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyGroups(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Groups = map[string]GroupConfig{
		"static-one": {Leaders: []string{"leader-1"}},
	}
	require.Error(t, cfg.Validate(), "a group without worlds cannot build its sheet")
}
