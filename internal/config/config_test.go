package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, time.Second, cfg.Tick.Interval)
	require.Equal(t, 5, cfg.Tick.FlushEveryTicks)
	require.Equal(t, 14, cfg.Report.WindowDays)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "127.0.0.1:8642", cfg.Daemon.ListenAddr)
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /tmp/ft-test
logging:
  level: debug
report:
  window_days: 7
  rounding_enabled: true
  rounding_minutes: 30
daemon:
  listen_addr: 127.0.0.1:9999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/ft-test", cfg.DataDir)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 7, cfg.Report.WindowDays)
	require.True(t, cfg.Report.RoundingEnabled)
	require.Equal(t, 30, cfg.Report.RoundingMinutes)
	require.Equal(t, "127.0.0.1:9999", cfg.Daemon.ListenAddr)

	// Fields the file omits keep their defaults.
	require.Equal(t, time.Second, cfg.Tick.Interval)
	require.Equal(t, "fathertime.events", cfg.Daemon.NATS.Subject)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("FT_TEST_DATA_DIR", "/tmp/ft-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: ${FT_TEST_DATA_DIR}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/ft-env", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad rounding", func(c *Config) { c.Report.RoundingMinutes = 10 }, true},
		{"nats enabled without url", func(c *Config) { c.Daemon.NATS.Enabled = true }, true},
		{"nats enabled with url", func(c *Config) {
			c.Daemon.NATS.Enabled = true
			c.Daemon.NATS.URL = "nats://127.0.0.1:4222"
		}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(cfg)
			err := cfg.Validate()
			if c.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: shout\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
