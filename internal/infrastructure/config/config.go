package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lightify2mqtt.
// All configuration is loaded from YAML and can be overridden by
// command-line flags and environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Lightify  LightifyConfig  `yaml:"lightify"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID is a prefix; a unique suffix is appended per process.
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LightifyConfig contains the Lightify cloud gateway settings.
type LightifyConfig struct {
	// Region selects the API host, e.g. "eu" or "us".
	Region string `yaml:"region"`

	// BaseURL overrides the region-derived service base when set.
	BaseURL string `yaml:"base_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Serial is the gateway serial printed on the device, without suffix.
	Serial string `yaml:"serial"`

	// PollInterval is the delay between poll cycles (seconds).
	PollInterval int `yaml:"poll_interval"`

	// RequestTimeout bounds every HTTP call to the cloud API (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// ReloginOnAuthFailure renews the session and retries once when an
	// authenticated call is answered with 401 or 403.
	ReloginOnAuthFailure bool `yaml:"relogin_on_auth_failure"`

	// LoginRetryDelay is the wait between login attempts that failed for
	// reasons other than rejected credentials (seconds).
	LoginRetryDelay int `yaml:"login_retry_delay"`
}

// DatabaseConfig contains SQLite settings for the command audit log.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is one of stdout, stderr or syslog.
	Output string `yaml:"output"`
}

// Load builds the configuration from defaults and an optional YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (skipped when path is empty)
//  3. Environment variables (override file values)
//
// Command-line flags are applied by the caller between Load and Validate,
// so Load does not validate.
//
// Environment variables follow the pattern: LIGHTIFY_SECTION_KEY
// For example: LIGHTIFY_MQTT_HOST, LIGHTIFY_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a Config with the bridge's defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lightify2mqtt",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "lightify/",
		},
		Lightify: LightifyConfig{
			Region:               "eu",
			PollInterval:         30,
			RequestTimeout:       15,
			ReloginOnAuthFailure: true,
			LoginRetryDelay:      30,
		},
		Database: DatabaseConfig{
			Path:        "./data/lightify2mqtt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LIGHTIFY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("LIGHTIFY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LIGHTIFY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LIGHTIFY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LIGHTIFY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("LIGHTIFY_MQTT_TOPIC"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}

	// Lightify credentials
	if v := os.Getenv("LIGHTIFY_USER"); v != "" {
		cfg.Lightify.Username = v
	}
	if v := os.Getenv("LIGHTIFY_PASSWORD"); v != "" {
		cfg.Lightify.Password = v
	}
	if v := os.Getenv("LIGHTIFY_SERIAL"); v != "" {
		cfg.Lightify.Serial = v
	}

	// InfluxDB
	if v := os.Getenv("LIGHTIFY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Normalize fills derived values. It is idempotent.
func (c *Config) Normalize() {
	if c.MQTT.TopicPrefix != "" && !strings.HasSuffix(c.MQTT.TopicPrefix, "/") {
		c.MQTT.TopicPrefix += "/"
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// Lightify validation - credentials have no sensible default
	if c.Lightify.Username == "" {
		errs = append(errs, "lightify.username is required (--user or LIGHTIFY_USER)")
	}
	if c.Lightify.Password == "" {
		errs = append(errs, "lightify.password is required (--password or LIGHTIFY_PASSWORD)")
	}
	if c.Lightify.Serial == "" {
		errs = append(errs, "lightify.serial is required (--serial or LIGHTIFY_SERIAL)")
	}
	if c.Lightify.Region == "" && c.Lightify.BaseURL == "" {
		errs = append(errs, "lightify.region or lightify.base_url is required")
	}
	if c.Lightify.PollInterval < 1 {
		errs = append(errs, "lightify.poll_interval must be at least 1 second")
	}
	if c.Lightify.RequestTimeout < 1 {
		errs = append(errs, "lightify.request_timeout must be at least 1 second")
	}
	if c.Lightify.LoginRetryDelay < 1 {
		errs = append(errs, "lightify.login_retry_delay must be at least 1 second")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the audit log is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}

	return nil
}

// ServiceBaseURL returns the cloud API base URL with a trailing slash.
func (c LightifyConfig) ServiceBaseURL() string {
	base := c.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.lightify-api.org/lightify/services/", c.Region)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// GetPollInterval returns the poll interval as a Duration.
func (c LightifyConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetRequestTimeout returns the HTTP request timeout as a Duration.
func (c LightifyConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetLoginRetryDelay returns the login retry delay as a Duration.
func (c LightifyConfig) GetLoginRetryDelay() time.Duration {
	return time.Duration(c.LoginRetryDelay) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
