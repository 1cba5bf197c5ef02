package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // request timezones resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Query    QueryConfig    `mapstructure:"query"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	Host string `mapstructure:"host"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSL             string        `mapstructure:"ssl"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	JWTExpiration        time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute   int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	EnableAuth           bool          `mapstructure:"enable_auth"`
	EnableRateLimit      bool          `mapstructure:"enable_rate_limit"`
	CorsOrigins          []string      `mapstructure:"cors_origins"`
	MaxSegmentLength     int           `mapstructure:"max_segment_length"`
	MaxSegmentComplexity int           `mapstructure:"max_segment_complexity"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// QueryConfig drives the pagination and timezone defaults of list requests
type QueryConfig struct {
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	PoolInterval    time.Duration `mapstructure:"pool_interval"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set default values
	setDefaults(v)

	// LIANA_QUERY_DEFAULT_PAGE_SIZE overrides query.default_page_size
	v.SetEnvPrefix("liana")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and environment
		fmt.Println("Config file not found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the gateway cannot start with
func (c *Config) Validate() error {
	if c.Query.DefaultPageSize <= 0 {
		return fmt.Errorf("query.default_page_size must be positive, got %d", c.Query.DefaultPageSize)
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return fmt.Errorf("query.max_page_size (%d) is lower than query.default_page_size (%d)", c.Query.MaxPageSize, c.Query.DefaultPageSize)
	}
	if _, err := time.LoadLocation(c.Query.DefaultTimezone); err != nil {
		return fmt.Errorf("query.default_timezone: %w", err)
	}
	if c.Security.EnableAuth && c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required when auth is enabled")
	}
	return nil
}

// DefaultLocation returns the timezone applied to date filters of requests
// that send none
func (q QueryConfig) DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(q.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.host", "0.0.0.0")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.database", "liana")
	v.SetDefault("database.username", "liana")
	v.SetDefault("database.ssl", "false")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)

	// Security defaults
	v.SetDefault("security.jwt_secret", "your-secret-key")
	v.SetDefault("security.jwt_expiration", "24h")
	v.SetDefault("security.rate_limit_per_minute", 120)
	v.SetDefault("security.rate_limit_burst", 20)
	v.SetDefault("security.enable_auth", true)
	v.SetDefault("security.enable_rate_limit", true)
	v.SetDefault("security.cors_origins", []string{})
	v.SetDefault("security.max_segment_length", 10000)
	v.SetDefault("security.max_segment_complexity", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Query defaults
	v.SetDefault("query.default_page_size", 15)
	v.SetDefault("query.max_page_size", 1000)
	v.SetDefault("query.default_timezone", "UTC")
	v.SetDefault("query.timeout", "30s")

	// Metrics defaults
	v.SetDefault("metrics.retention", "24h")
	v.SetDefault("metrics.cleanup_interval", "1h")
	v.SetDefault("metrics.pool_interval", "15s")
}
