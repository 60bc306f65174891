package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChannels(t *testing.T) {
	assert.Equal(t, []string{"forsen", "xqc"}, SplitChannels(" #Forsen, xqc,,forsen "))
	assert.Nil(t, SplitChannels(""))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWITCH_BOT_USERNAME", "ModBot")
	t.Setenv("TWITCH_ACCESS_TOKEN", "oauth:abc")
	t.Setenv("TWITCH_CHANNELS", "a,#B")
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("API_TIMEOUT", "2s")
	t.Setenv("CHAT_RATE_LIMIT", "100")
	t.Setenv("BOT_NAME", "")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "modbot", cfg.TwitchUsername)
	assert.Equal(t, []string{"a", "b"}, cfg.TwitchChannels)
	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.Equal(t, 2*time.Second, cfg.APITimeout)
	assert.Equal(t, 100, cfg.ChatRateLimit)
	assert.Equal(t, "modbot", cfg.BotName, "bot name defaults to the login")
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
}

func TestLoadInvalidTimeout(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RULES_PATH=/etc/modbot/rules.yaml\n"), 0o600))
	t.Setenv("RULES_PATH", "")
	os.Unsetenv("RULES_PATH")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/modbot/rules.yaml", cfg.RulesPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{TwitchUsername: "bot"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWITCH_ACCESS_TOKEN")
	assert.NotContains(t, err.Error(), "TWITCH_BOT_USERNAME")

	cfg = &Config{TwitchUsername: "bot", TwitchAccessToken: "t", TwitchClientID: "c", TwitchBotUserID: "1"}
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
