// Package config loads and validates the fathertime configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	DataDir string       `yaml:"data_dir"`
	Logging LogConfig    `yaml:"logging"`
	Tick    TickConfig   `yaml:"tick"`
	Report  ReportConfig `yaml:"report"`
	Daemon  DaemonConfig `yaml:"daemon"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// TickConfig controls the 1 Hz driver and its persistence throttle.
type TickConfig struct {
	Interval        time.Duration `yaml:"interval"`
	FlushEveryTicks int           `yaml:"flush_every_ticks"`
}

// ReportConfig controls the daily aggregation window and display rounding.
type ReportConfig struct {
	WindowDays      int  `yaml:"window_days"`
	RoundingEnabled bool `yaml:"rounding_enabled"`
	RoundingMinutes int  `yaml:"rounding_minutes"` // 15, 30 or 60
}

// DaemonConfig controls the long-running daemon surfaces.
type DaemonConfig struct {
	ListenAddr     string     `yaml:"listen_addr"`
	MetricsEnabled bool       `yaml:"metrics_enabled"`
	JournalPath    string     `yaml:"journal_path"` // empty disables the event journal
	NATS           NATSConfig `yaml:"nats"`
}

// NATSConfig configures the optional event publisher bridge.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Load loads configuration from the specified file. A missing file yields
// the defaults so the CLI works without any setup.
func Load(configPath string) (*Config, error) {
	// Load .env/.env.local if present; existing env vars win.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			break
		}
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Tick.Interval <= 0 {
		c.Tick.Interval = time.Second
	}
	if c.Tick.FlushEveryTicks <= 0 {
		c.Tick.FlushEveryTicks = 5
	}
	if c.Report.WindowDays <= 0 {
		c.Report.WindowDays = 14
	}
	if c.Report.RoundingMinutes == 0 {
		c.Report.RoundingMinutes = 15
	}
	if c.Daemon.ListenAddr == "" {
		c.Daemon.ListenAddr = "127.0.0.1:8642"
	}
	if c.Daemon.NATS.Subject == "" {
		c.Daemon.NATS.Subject = "fathertime.events"
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Report.RoundingMinutes {
	case 15, 30, 60:
	default:
		return fmt.Errorf("invalid report.rounding_minutes %d (want 15, 30 or 60)", c.Report.RoundingMinutes)
	}
	if c.Daemon.NATS.Enabled && c.Daemon.NATS.URL == "" {
		return fmt.Errorf("daemon.nats.url required when daemon.nats.enabled")
	}
	return nil
}
