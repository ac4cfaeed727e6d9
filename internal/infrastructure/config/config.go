package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumen.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Session     SessionConfig     `yaml:"session"`
	Admin       AdminConfig       `yaml:"admin"`
	Static      StaticConfig      `yaml:"static"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`

	// WALMode enables Write-Ahead Logging for concurrent reads during writes.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the maximum time to wait for a locked database (seconds).
	// Bounds waiting under contention instead of queuing indefinitely.
	BusyTimeout int `yaml:"busy_timeout"`

	// MaxConnections bounds the connection pool shared by all callers.
	MaxConnections int `yaml:"max_connections"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for display state connections.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// SessionConfig contains bearer session settings.
type SessionConfig struct {
	// MaxAge is the session idle lifetime in seconds. A session whose
	// last activity is older than this fails authorisation.
	MaxAge int `yaml:"max_age"`

	// RenewThreshold is the minimum session age in seconds before the
	// activity timestamp is rewritten. Amortises write load when clients poll.
	RenewThreshold int `yaml:"renew_threshold"`
}

// AdminConfig contains the first-boot admin account seed.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StaticConfig contains settings for serving the built web client.
type StaticConfig struct {
	Root        string `yaml:"root"`
	Index       string `yaml:"index"`
	CacheMaxAge int    `yaml:"cache_max_age"`
}

// MaintenanceConfig contains database maintenance intervals (seconds).
type MaintenanceConfig struct {
	OptimizeInterval        int `yaml:"optimize_interval"`
	QuickCheckpointInterval int `yaml:"quick_checkpoint_interval"`
	FullCheckpointInterval  int `yaml:"full_checkpoint_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains settings for the optional display state mirror.
type MQTTConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Broker    MQTTBroker     `yaml:"broker"`
	Auth      MQTTAuthConfig `yaml:"auth"`
	QoS       int            `yaml:"qos"`
	TopicRoot string         `yaml:"topic_root"`
}

// MQTTBroker contains MQTT broker connection details.
type MQTTBroker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains settings for optional telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern LUMEN_SECTION_KEY, for example
// LUMEN_DATABASE_PATH or LUMEN_ADMIN_PASSWORD.
//
// A missing config file is not an error: defaults plus environment variables
// apply, so a fresh deployment can boot without any file at all.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

const (
	defaultSessionMaxAge  = 60 * 60 * 24 * 365 // one year, in seconds
	defaultRenewThreshold = 60
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           "./data/lumen.db",
			WALMode:        true,
			BusyTimeout:    5,
			MaxConnections: 8,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:5173"},
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Session: SessionConfig{
			MaxAge:         defaultSessionMaxAge,
			RenewThreshold: defaultRenewThreshold,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin",
		},
		Static: StaticConfig{
			Root:        "./client/dist",
			Index:       "index.html",
			CacheMaxAge: 60 * 60 * 24,
		},
		Maintenance: MaintenanceConfig{
			OptimizeInterval:        60 * 60,
			QuickCheckpointInterval: 60,
			FullCheckpointInterval:  60 * 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBroker{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-core",
			},
			QoS:       1,
			TopicRoot: "lumen",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LUMEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LUMEN_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
	if v := os.Getenv("LUMEN_ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := os.Getenv("LUMEN_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("LUMEN_SESSION_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxAge = n
		}
	}
	if v := os.Getenv("LUMEN_STATIC_ROOT"); v != "" {
		cfg.Static.Root = v
	}
	if v := os.Getenv("LUMEN_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.MaxConnections < 1 {
		errs = append(errs, "database.max_connections must be at least 1")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Session.MaxAge < 1 {
		errs = append(errs, "session.max_age must be positive")
	}
	if c.Session.RenewThreshold < 0 {
		errs = append(errs, "session.renew_threshold must not be negative")
	}
	if c.WebSocket.MaxMessageSize < 1024 {
		errs = append(errs, "websocket.max_message_size must be at least 1024")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SessionMaxAge returns the session idle lifetime as a Duration.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAge) * time.Second
}

// SessionRenewThreshold returns the renewal threshold as a Duration.
func (c *Config) SessionRenewThreshold() time.Duration {
	return time.Duration(c.Session.RenewThreshold) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}

// PingInterval returns the WebSocket keepalive interval as a Duration.
func (c *WebSocketConfig) GetPingInterval() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// GetPongTimeout returns the WebSocket pong deadline as a Duration.
func (c *WebSocketConfig) GetPongTimeout() time.Duration {
	return time.Duration(c.PongTimeout) * time.Second
}

// BrokerURL returns the MQTT broker URL in the form scheme://host:port.
func (c *MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}
