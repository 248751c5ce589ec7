package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tradelink TradelinkConfig `yaml:"tradelink"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Trading   TradingConfig   `yaml:"trading"`
	Stream    StreamConfig    `yaml:"stream"`
	Audit     AuditConfig     `yaml:"audit"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TradelinkConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ExchangeConfig struct {
	Name           string               `yaml:"name"`
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	APISecret      string               `yaml:"api_secret"`
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	RecvWindow     int64                `yaml:"recv_window"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type TradingConfig struct {
	// Leverage is keyed by exchange name; sizing falls back to its default
	// when an exchange has no entry.
	Leverage      map[string]int `yaml:"leverage"`
	MarginType    string         `yaml:"margin_type"`
	ResetInterval time.Duration  `yaml:"unsupported_reset_interval"`
}

type StreamConfig struct {
	URL            string        `yaml:"url"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxAttempts    int           `yaml:"max_attempts"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type AuditConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level      string           `yaml:"level"`
	Format     string           `yaml:"format"`
	Output     string           `yaml:"output"`
	MaxAge     int              `yaml:"max_age"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	// Environment specific config files take precedence over the default
	// path when APP_ENV selects one.
	path = resolveEnvSpecificPath(path, "config/config.yml", map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Exchange: ExchangeConfig{
			Name:           "binance",
			RequestTimeout: 10 * time.Second,
			RecvWindow:     5000,
			RateLimit:      RateLimitConfig{RequestsPerSecond: 10, BurstSize: 20},
		},
		Trading: TradingConfig{
			MarginType:    "ISOLATED",
			ResetInterval: 24 * time.Hour,
		},
		Stream: StreamConfig{
			BaseDelay:      time.Second,
			MaxAttempts:    5,
			PingInterval:   20 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{Path: "audit/orders.json"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override exchange credentials from environment variables if available
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Exchange.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		config.Exchange.APISecret = strings.TrimSpace(v)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Tradelink.Name == "" {
		return fmt.Errorf("tradelink.name is required")
	}

	if cfg.Tradelink.Version == "" {
		return fmt.Errorf("tradelink.version is required")
	}

	if cfg.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("exchange.request_timeout must be greater than 0")
	}
	if cfg.Exchange.RecvWindow <= 0 {
		return fmt.Errorf("exchange.recv_window must be greater than 0")
	}
	if cfg.Exchange.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("exchange.rate_limit.requests_per_second must be greater than 0")
	}

	switch strings.ToUpper(cfg.Trading.MarginType) {
	case "ISOLATED", "CROSSED":
	default:
		return fmt.Errorf("trading.margin_type must be ISOLATED or CROSSED")
	}
	for exchange, lev := range cfg.Trading.Leverage {
		if lev <= 0 {
			return fmt.Errorf("trading.leverage for '%s' must be greater than 0", exchange)
		}
	}
	if cfg.Trading.ResetInterval <= 0 {
		return fmt.Errorf("trading.unsupported_reset_interval must be greater than 0")
	}

	if cfg.Stream.URL == "" {
		return fmt.Errorf("stream.url is required")
	}
	if cfg.Stream.BaseDelay <= 0 {
		return fmt.Errorf("stream.base_delay must be greater than 0")
	}
	if cfg.Stream.MaxAttempts <= 0 {
		return fmt.Errorf("stream.max_attempts must be greater than 0")
	}
	if cfg.Stream.PingInterval <= 0 {
		return fmt.Errorf("stream.ping_interval must be greater than 0")
	}
	if cfg.Stream.ConnectTimeout <= 0 {
		return fmt.Errorf("stream.connect_timeout must be greater than 0")
	}

	if cfg.Audit.Path == "" {
		return fmt.Errorf("audit.path is required")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
	}

	return nil
}

// ValidateCredentials checks that exchange API credentials are present.
// Missing credentials are a fatal startup condition.
func (c *Config) ValidateCredentials() error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange credentials missing: set BINANCE_API_KEY and BINANCE_API_SECRET")
	}
	return nil
}
