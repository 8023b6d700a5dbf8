package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for vesyncd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	VeSync    VeSyncConfig    `yaml:"vesync"`
	Poller    PollerConfig    `yaml:"poller"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// VeSyncConfig contains VeSync cloud account and polling settings.
type VeSyncConfig struct {
	// Username is the VeSync account username (usually an email address).
	Username string `yaml:"username"`

	// Password is the VeSync account password. Prefer the
	// VESYNCD_VESYNC_PASSWORD environment variable over the file.
	Password string `yaml:"password"`

	// TimeZone is an IANA time zone name sent with every API request.
	TimeZone string `yaml:"time_zone"`

	// BaseURL overrides the cloud API endpoint. Empty means the
	// production VeSync API; set for testing against a local stub.
	BaseURL string `yaml:"base_url"`

	// UpdateInterval is the minimum time between device list fetches (seconds).
	// The cloud API is rate limited; values below 30 risk throttling.
	UpdateInterval int `yaml:"update_interval"`

	// EnergyUpdateInterval is the minimum time between per-outlet energy
	// history fetches (seconds).
	EnergyUpdateInterval int `yaml:"energy_update_interval"`

	// RequestTimeout is the per-request HTTP timeout (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// PollerConfig contains the fixed-interval refresh loop settings.
type PollerConfig struct {
	// Interval is the device refresh period (seconds). This is a static
	// value; large installations may want it raised to stay inside the
	// cloud API quota.
	Interval int `yaml:"interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays is how long state and energy history rows are kept.
	// Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB time-series database settings.
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
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig contains cross-origin settings for browser dashboards.
// Empty lists fall back to permissive development defaults.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains local API security settings.
type SecurityConfig struct {
	JWT   JWTConfig       `yaml:"jwt"`
	Admin AdminUserConfig `yaml:"admin"`
}

// JWTConfig contains JWT signing settings for the local API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// AdminUserConfig contains the single local API user.
type AdminUserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// timeZonePattern rejects time zone strings with characters outside the
// IANA name alphabet.
var timeZonePattern = regexp.MustCompile(`^[A-Za-z0-9/_+-]+$`)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VESYNCD_SECTION_KEY
// For example: VESYNCD_VESYNC_PASSWORD, VESYNCD_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		VeSync: VeSyncConfig{
			TimeZone:             "America/New_York",
			UpdateInterval:       30,
			EnergyUpdateInterval: 21600,
			RequestTimeout:       30,
		},
		Poller: PollerConfig{
			Interval: 60,
		},
		Database: DatabaseConfig{
			Path:          "./data/vesyncd.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vesyncd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0, // unlimited
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8130,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VESYNCD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// VeSync account
	if v := os.Getenv("VESYNCD_VESYNC_USERNAME"); v != "" {
		cfg.VeSync.Username = v
	}
	if v := os.Getenv("VESYNCD_VESYNC_PASSWORD"); v != "" {
		cfg.VeSync.Password = v
	}
	if v := os.Getenv("VESYNCD_VESYNC_BASE_URL"); v != "" {
		cfg.VeSync.BaseURL = v
	}

	// Database
	if v := os.Getenv("VESYNCD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VESYNCD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VESYNCD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VESYNCD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VESYNCD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("VESYNCD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("VESYNCD_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// VeSync account validation. Empty credentials are rejected here,
	// before any network call is attempted.
	if strings.TrimSpace(c.VeSync.Username) == "" {
		errs = append(errs, "vesync.username is required")
	}
	if c.VeSync.Password == "" {
		errs = append(errs, "vesync.password is required")
	}
	if c.VeSync.TimeZone != "" && !timeZonePattern.MatchString(c.VeSync.TimeZone) {
		errs = append(errs, "vesync.time_zone contains invalid characters")
	}
	if c.VeSync.UpdateInterval <= 0 {
		errs = append(errs, "vesync.update_interval must be positive")
	}
	if c.VeSync.EnergyUpdateInterval <= 0 {
		errs = append(errs, "vesync.energy_update_interval must be positive")
	}
	if c.Poller.Interval <= 0 {
		errs = append(errs, "poller.interval must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file when enabled")
	}

	// Security validation
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set VESYNCD_JWT_SECRET)")
	}
	if c.Security.Admin.Username == "" || c.Security.Admin.Password == "" {
		errs = append(errs, "security.admin credentials are required")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1 or 2")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetUpdateInterval returns the minimum device list fetch interval as a Duration.
func (c *VeSyncConfig) GetUpdateInterval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Second
}

// GetEnergyUpdateInterval returns the minimum energy fetch interval as a Duration.
func (c *VeSyncConfig) GetEnergyUpdateInterval() time.Duration {
	return time.Duration(c.EnergyUpdateInterval) * time.Second
}

// GetRequestTimeout returns the HTTP request timeout as a Duration.
func (c *VeSyncConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetInterval returns the poll period as a Duration.
func (c *PollerConfig) GetInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAccessTokenTTL returns the JWT access token lifetime as a Duration.
func (c *JWTConfig) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Minute
}
