package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qntx/otprobe/command"
	"github.com/qntx/otprobe/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests mutate the process environment and cannot run in parallel.

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		config.EnvURL, config.EnvSubprotocols, config.EnvUsername, config.EnvPassword,
		config.EnvCommands, config.EnvTimeout, config.EnvCloseTimeout, config.EnvPingInterval, config.EnvReadLimit,
		config.EnvLogLevel, config.EnvNoColor,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "ws://127.0.0.1:9111/ot/", cfg.URL)
	assert.Equal(t, []string{"http-only"}, cfg.Subprotocols)
	assert.Equal(t, "test", cfg.Username)
	assert.Equal(t, "test", cfg.Password)
	assert.Empty(t, cfg.Commands)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, config.DefaultCloseTimeout, cfg.CloseTimeout)
	assert.Zero(t, cfg.PingInterval)
	assert.Zero(t, cfg.ReadLimit)
	assert.False(t, cfg.NoColor)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv(config.EnvURL, "wss://gateway.example:443/ot/")
	t.Setenv(config.EnvSubprotocols, "http-only, json")
	t.Setenv(config.EnvUsername, "alice")
	t.Setenv(config.EnvPassword, "secret")
	t.Setenv(config.EnvCommands, `[["securities"]]`)
	t.Setenv(config.EnvTimeout, "5s")
	t.Setenv(config.EnvCloseTimeout, "250ms")
	t.Setenv(config.EnvPingInterval, "15s")
	t.Setenv(config.EnvReadLimit, "65536")
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvNoColor, "true")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "wss://gateway.example:443/ot/", cfg.URL)
	assert.Equal(t, []string{"http-only", "json"}, cfg.Subprotocols)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, []command.Command{command.Securities()}, cfg.Commands)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.CloseTimeout)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, int64(65536), cfg.ReadLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.NoColor)
}

func TestLoadDotenv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "probe.env")
	content := "OTPROBE_URL=ws://10.0.0.5:9111/ot/\nOTPROBE_USERNAME=bob\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Environment wins over the file.
	t.Setenv(config.EnvUsername, "carol")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:9111/ot/", cfg.URL)
	assert.Equal(t, "carol", cfg.Username)

	// godotenv.Load sets variables on the process; drop them for later tests.
	require.NoError(t, os.Unsetenv(config.EnvURL))
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "HTTPScheme", key: config.EnvURL, value: "http://127.0.0.1:9111/ot/", wantErr: config.ErrInvalidURL},
		{name: "EmptySubprotocol", key: config.EnvSubprotocols, value: "http-only,,json", wantErr: config.ErrInvalidSubprotocol},
		{name: "NegativeTimeout", key: config.EnvTimeout, value: "-1s", wantErr: config.ErrNegative},
		{name: "NegativeCloseTimeout", key: config.EnvCloseTimeout, value: "-1ms", wantErr: config.ErrNegative},
		{name: "BadDuration", key: config.EnvPingInterval, value: "soon"},
		{name: "BadReadLimit", key: config.EnvReadLimit, value: "lots"},
		{name: "BadBool", key: config.EnvNoColor, value: "maybe"},
		{name: "BadCommands", key: config.EnvCommands, value: `[[]]`, wantErr: command.ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.FromEnv()
			require.Error(t, err)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestBlankSubprotocols(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvSubprotocols, " ")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Subprotocols)
}

func TestEmptyCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.Password)

	clearEnv(t)

	cfg, err = config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultUsername, cfg.Username)
	assert.Equal(t, config.DefaultPassword, cfg.Password)
}
