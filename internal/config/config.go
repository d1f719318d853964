// Package config loads the mysticd YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// Config represents the application configuration
type Config struct {
	SDK             SDKConfig       `yaml:"sdk"`
	Database        DatabaseConfig  `yaml:"database"`
	Log             LogConfig       `yaml:"log"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	API             APIConfig       `yaml:"api"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
	EventBus        EventBusConfig  `yaml:"eventbus"`
	Scheduler       SchedulerConfig `yaml:"scheduler"`
	Script          string          `yaml:"script"`           // Lua script, empty to disable scripting
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// SDKConfig selects the native library or the simulator
type SDKConfig struct {
	LibraryPath    string `yaml:"library_path"`
	LevelPolicy    string `yaml:"level_policy"` // reject, forward or clamp (default: reject)
	Simulate       bool   `yaml:"simulate"`
	Fixture        string `yaml:"fixture"`          // Simulator fixture, empty for the built-in one
	RestoreOnStart bool   `yaml:"restore_on_start"` // Re-apply the last written zone states at startup
}

// Policy returns the parsed level policy
func (c *SDKConfig) Policy() mystic.LevelPolicy {
	p, err := mystic.ParseLevelPolicy(c.LevelPolicy)
	if err != nil {
		return mystic.LevelPolicyReject
	}
	return p
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"` // Plain JSON lines instead of the console writer
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"` // Negative keeps entries forever
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	WriteRateLimit float64  `yaml:"write_rate_limit"` // Zone writes per second across all clients
	WriteBurst     int      `yaml:"write_burst"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// Addr returns host:port
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains MQTT bridge settings
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Broker         string   `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TopicPrefix    string   `yaml:"topic_prefix"`
	QoS            byte     `yaml:"qos"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// SchedulerConfig contains settings for scheduled script actions
type SchedulerConfig struct {
	Timezone string `yaml:"timezone"` // IANA name for daily schedules, empty for local time
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. Relative script and fixture paths
// are resolved against the directory of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.Script = resolve(dir, cfg.Script)
	cfg.SDK.Fixture = resolve(dir, cfg.SDK.Fixture)

	return cfg, nil
}

// Parse decodes a configuration document, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./mysticd.sqlite"
	}

	// SDK defaults
	if cfg.SDK.LibraryPath == "" {
		cfg.SDK.LibraryPath = "MysticLight_SDK_x64.dll"
	}
	if cfg.SDK.LevelPolicy == "" {
		cfg.SDK.LevelPolicy = mystic.LevelPolicyReject.String()
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8420
	}
	if cfg.API.WriteRateLimit == 0 {
		cfg.API.WriteRateLimit = 20
	}
	if cfg.API.WriteBurst == 0 {
		cfg.API.WriteBurst = 10
	}
	if cfg.API.RequestTimeout == 0 {
		cfg.API.RequestTimeout = Duration(10 * time.Second)
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "mysticd"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "mystic"
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = Duration(10 * time.Second)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate reports every invalid setting.
func (cfg *Config) Validate() error {
	var errs []error

	if _, err := mystic.ParseLevelPolicy(cfg.SDK.LevelPolicy); err != nil {
		errs = append(errs, fmt.Errorf("sdk.level_policy: %w", err))
	}
	if cfg.Ledger.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("ledger.cleanup_interval: must be positive"))
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port: %d out of range", cfg.API.Port))
	}
	if cfg.API.WriteRateLimit < 0 {
		errs = append(errs, fmt.Errorf("api.write_rate_limit: must not be negative"))
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker: required when mqtt is enabled"))
	}
	if cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos: %d is not 0, 1 or 2", cfg.MQTT.QoS))
	}
	if cfg.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
		errs = append(errs, fmt.Errorf("mqtt.topic_prefix: wildcards not allowed"))
	}

	return errors.Join(errs...)
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
