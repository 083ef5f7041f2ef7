// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/leafsync/internal/domain"
)

// EnvPrefix prefixes every environment variable, e.g. LEAFSYNC_SERVER_PORT.
const EnvPrefix = "LEAFSYNC"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Presets PresetsConfig `mapstructure:"presets"`
	Tiles   TilesConfig   `mapstructure:"tiles"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"` // 0 keeps SSE streams open
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	FrontendEnabled bool          `mapstructure:"frontend_enabled"`
	LeafletURL      string        `mapstructure:"leaflet_url"` // base URL of the Leaflet dist files
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// RuntimeConfig holds browser runtime configuration.
type RuntimeConfig struct {
	CallTimeout time.Duration `mapstructure:"call_timeout"` // bound on query calls
	MaxMaps     int           `mapstructure:"max_maps"`     // 0 = unlimited
	OutboxSize  int           `mapstructure:"outbox_size"`  // calls buffered per map
	Heartbeat   time.Duration `mapstructure:"heartbeat"`    // SSE keep-alive, 0 disables
}

// PresetsConfig holds map preset configuration.
type PresetsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SyncInterval time.Duration `mapstructure:"sync_interval"` // 0 disables periodic sync
	Watch        bool          `mapstructure:"watch"`         // hot reload, local storage only
	Storage      StorageConfig `mapstructure:"storage"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// TilesConfig holds MBTiles configuration.
type TilesConfig struct {
	Path string `mapstructure:"path"` // directory of .mbtiles files, empty disables
}

// Enabled returns true if a tiles directory is configured.
func (c *TilesConfig) Enabled() bool {
	return c.Path != ""
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds the Azure DNS settings for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 0)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.frontend_enabled", true)
	viper.SetDefault("server.leaflet_url", "https://unpkg.com/leaflet@1.9.4/dist")
	viper.SetDefault("server.cors.allowed_origins", []string{})

	viper.SetDefault("runtime.call_timeout", 10*time.Second)
	viper.SetDefault("runtime.max_maps", 100)
	viper.SetDefault("runtime.outbox_size", 1024)
	viper.SetDefault("runtime.heartbeat", 15*time.Second)

	viper.SetDefault("presets.enabled", true)
	viper.SetDefault("presets.sync_interval", 0)
	viper.SetDefault("presets.watch", true)
	viper.SetDefault("presets.storage.type", "local")
	viper.SetDefault("presets.storage.local_path", "./presets")
	viper.SetDefault("presets.storage.http.index_file", "index.txt")
	viper.SetDefault("presets.storage.http.timeout", 30*time.Second)

	viper.SetDefault("tiles.path", "")

	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "leafsync")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/leafsync")
	}

	// The config file is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Message: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	if c.Runtime.CallTimeout <= 0 {
		return &domain.ConfigError{Field: "runtime.call_timeout", Message: "must be positive"}
	}
	if c.Runtime.MaxMaps < 0 {
		return &domain.ConfigError{Field: "runtime.max_maps", Message: "must not be negative"}
	}
	if c.Runtime.OutboxSize < 1 {
		return &domain.ConfigError{Field: "runtime.outbox_size", Message: "must be at least 1"}
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return &domain.ConfigError{Field: "tls.domains", Message: "TLS enabled but no domains specified"}
		}
		if c.TLS.Email == "" {
			return &domain.ConfigError{Field: "tls.email", Message: "TLS enabled but no email specified"}
		}
	}

	if c.Presets.Enabled {
		if c.Presets.SyncInterval < 0 {
			return &domain.ConfigError{Field: "presets.sync_interval", Message: "must not be negative"}
		}
		if err := c.Presets.Storage.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate validates the storage backend settings.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case "local":
		if c.LocalPath == "" {
			return &domain.ConfigError{Field: "presets.storage.local_path", Message: "local storage path is required"}
		}
	case "s3":
		if c.S3.Bucket == "" {
			return &domain.ConfigError{Field: "presets.storage.s3.bucket", Message: "S3 bucket is required"}
		}
		if c.S3.Region == "" {
			return &domain.ConfigError{Field: "presets.storage.s3.region", Message: "S3 region is required"}
		}
	case "azure":
		if c.Azure.Container == "" {
			return &domain.ConfigError{Field: "presets.storage.azure.container", Message: "azure container is required"}
		}
		if c.Azure.AccountName == "" && c.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: "presets.storage.azure", Message: "azure account name or connection string is required"}
		}
	case "http":
		if c.HTTP.BaseURL == "" {
			return &domain.ConfigError{Field: "presets.storage.http.base_url", Message: "HTTP base URL is required"}
		}
	default:
		return &domain.ConfigError{Field: "presets.storage.type", Message: fmt.Sprintf("unknown storage type %q", c.Type)}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
