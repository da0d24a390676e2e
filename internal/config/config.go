package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Directory  DirectoryConfig  `yaml:"directory"`
	Simulation SimulationConfig `yaml:"simulation"`
	Chat       ChatConfig       `yaml:"chat"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port      int                 `yaml:"port"`
	RateLimit ServerRateLimit     `yaml:"rate_limit"`
	Timeouts  ServerTimeoutConfig `yaml:"timeouts"`
}

type ServerRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ServerTimeoutConfig struct {
	ReadHeaderSeconds int `yaml:"read_header_seconds"`
	WriteSeconds      int `yaml:"write_seconds"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type DirectoryConfig struct {
	MechanicsPath string `yaml:"mechanics_path"`
}

// SimulationConfig drives the booking lifecycle tracker. Intervals are
// expressed in seconds to keep the YAML readable.
type SimulationConfig struct {
	StatusIntervalSeconds   int     `yaml:"status_interval_seconds"`
	PositionIntervalSeconds int     `yaml:"position_interval_seconds"`
	ArrivalEstimateMinutes  int     `yaml:"arrival_estimate_minutes"`
	StepFraction            float64 `yaml:"step_fraction"`
	UserLat                 float64 `yaml:"user_lat"`
	UserLng                 float64 `yaml:"user_lng"`
}

func (s SimulationConfig) StatusInterval() time.Duration {
	return time.Duration(s.StatusIntervalSeconds) * time.Second
}

func (s SimulationConfig) PositionInterval() time.Duration {
	return time.Duration(s.PositionIntervalSeconds) * time.Second
}

type ChatConfig struct {
	ReplyDelaySeconds int `yaml:"reply_delay_seconds"`
}

func (c ChatConfig) ReplyDelay() time.Duration {
	return time.Duration(c.ReplyDelaySeconds) * time.Second
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	BookingSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment substitution before parsing, e.g. token: ${API_TOKEN}
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth token is required when auth is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Simulation.StepFraction <= 0 || c.Simulation.StepFraction >= 1 {
		return fmt.Errorf("simulation step_fraction must be in (0,1), got %v", c.Simulation.StepFraction)
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("archive path is required when archive is enabled")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Timeouts.ReadHeaderSeconds == 0 {
		c.Server.Timeouts.ReadHeaderSeconds = 5
	}
	if c.Server.Timeouts.WriteSeconds == 0 {
		c.Server.Timeouts.WriteSeconds = 15
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Directory.MechanicsPath == "" {
		c.Directory.MechanicsPath = "configs/mechanics.yaml"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "data/exports"
	}

	// Simulation defaults mirror the demo constants: advance status every
	// 10s, move the counterpart every 1s, 12-minute ETA, halve the
	// remaining distance per tick.
	if c.Simulation.StatusIntervalSeconds == 0 {
		c.Simulation.StatusIntervalSeconds = 10
	}
	if c.Simulation.PositionIntervalSeconds == 0 {
		c.Simulation.PositionIntervalSeconds = 1
	}
	if c.Simulation.ArrivalEstimateMinutes == 0 {
		c.Simulation.ArrivalEstimateMinutes = 12
	}
	if c.Simulation.StepFraction == 0 {
		c.Simulation.StepFraction = 0.5
	}
	if c.Simulation.UserLat == 0 && c.Simulation.UserLng == 0 {
		c.Simulation.UserLat = 37.7749
		c.Simulation.UserLng = -122.4194
	}

	if c.Chat.ReplyDelaySeconds == 0 {
		c.Chat.ReplyDelaySeconds = 2
	}
}
