package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// APIServerConfig represents the booking API server configuration
type APIServerConfig struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Channels    ChannelsConfig    `mapstructure:"channels"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
}

// SyncdConfig represents the sync daemon configuration
type SyncdConfig struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Sync           SyncConfig           `mapstructure:"sync"`
	Channels       ChannelsConfig       `mapstructure:"channels"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Idempotency    IdempotencyConfig    `mapstructure:"idempotency"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Shutdown       ShutdownConfig       `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// AuthConfig contains JWT validation settings for the booking API
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	JWKSURL string `mapstructure:"jwks_url"`
	Issuer  string `mapstructure:"issuer"`
}

// SyncConfig contains sync orchestrator settings
type SyncConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RequeueDelay   time.Duration `mapstructure:"requeue_delay"`
	PushTimeout    time.Duration `mapstructure:"push_timeout"`
}

// ChannelsConfig locates the per-channel catalog and credential files
type ChannelsConfig struct {
	CatalogFile     string `mapstructure:"catalog_file"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// IdempotencyConfig contains inbound event deduplication settings
type IdempotencyConfig struct {
	// Retention must exceed the longest external retry window; 24h floor.
	Retention     time.Duration `mapstructure:"retention"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// ReconciliationConfig contains drift detection settings
type ReconciliationConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	WindowDays int           `mapstructure:"window_days"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChannelCatalog holds static per-channel-type operating parameters.
// It lives in its own YAML file so operators can tune channel limits
// without touching process configuration.
type ChannelCatalog struct {
	Channels map[string]ChannelSettings `yaml:"channels"`
}

// ChannelSettings are the endpoint, rate-limit and breaker parameters for
// one channel type.
type ChannelSettings struct {
	BaseURL            string        `yaml:"base_url"`
	RateWindow         time.Duration `yaml:"rate_window"`
	RateBudget         int           `yaml:"rate_budget"`
	PerConnectionLimit bool          `yaml:"per_connection_limit"`
	BreakerThreshold   int           `yaml:"breaker_threshold"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`
	BreakerProbes      int           `yaml:"breaker_probes"`
}

// DefaultChannelSettings returns the fallback parameters applied when a
// channel type has no catalog entry.
func DefaultChannelSettings() ChannelSettings {
	return ChannelSettings{
		RateWindow:       time.Second,
		RateBudget:       10,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		BreakerProbes:    2,
	}
}

// LoadChannelCatalog reads the channel catalog YAML file. An empty path
// yields an empty catalog, so defaults apply to every channel.
func LoadChannelCatalog(path string) (*ChannelCatalog, error) {
	catalog := &ChannelCatalog{Channels: map[string]ChannelSettings{}}
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse channel catalog: %w", err)
	}
	if catalog.Channels == nil {
		catalog.Channels = map[string]ChannelSettings{}
	}
	return catalog, nil
}

// Settings returns the catalog entry for a channel type, or defaults.
// Zero-valued fields in a catalog entry fall back to defaults as well.
func (c *ChannelCatalog) Settings(channelType string) ChannelSettings {
	def := DefaultChannelSettings()
	s, ok := c.Channels[channelType]
	if !ok {
		return def
	}
	if s.RateWindow <= 0 {
		s.RateWindow = def.RateWindow
	}
	if s.RateBudget <= 0 {
		s.RateBudget = def.RateBudget
	}
	if s.BreakerThreshold <= 0 {
		s.BreakerThreshold = def.BreakerThreshold
	}
	if s.BreakerCooldown <= 0 {
		s.BreakerCooldown = def.BreakerCooldown
	}
	if s.BreakerProbes <= 0 {
		s.BreakerProbes = def.BreakerProbes
	}
	return s
}

// LoadAPIServer loads API server configuration from file and environment variables
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setAPIServerDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config APIServerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAPIServer(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadSyncd loads sync daemon configuration from file and environment variables
func LoadSyncd(configPath string) (*SyncdConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setSyncdDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SyncdConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateSyncd(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setCommonDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "staykit_sync")

	// Sync defaults
	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.workers", 8)
	viper.SetDefault("sync.queue_size", 1024)
	viper.SetDefault("sync.max_attempts", 5)
	viper.SetDefault("sync.initial_backoff", "500ms")
	viper.SetDefault("sync.max_backoff", "30s")
	viper.SetDefault("sync.requeue_delay", "5s")
	viper.SetDefault("sync.push_timeout", "15s")

	// Idempotency defaults
	viper.SetDefault("idempotency.retention", "48h")
	viper.SetDefault("idempotency.purge_interval", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func setAPIServerDefaults() {
	setCommonDefaults()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("auth.enabled", false)
}

func setSyncdDefaults() {
	setCommonDefaults()

	viper.SetDefault("reconciliation.interval", "15m")
	viper.SetDefault("reconciliation.window_days", 90)

	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)
}

func validateAPIServer(config *APIServerConfig) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Auth.Enabled && config.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth is enabled")
	}
	return nil
}

func validateSyncd(config *SyncdConfig) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if config.Idempotency.Retention < 24*time.Hour {
		return fmt.Errorf("idempotency.retention must be at least 24h")
	}
	return nil
}
