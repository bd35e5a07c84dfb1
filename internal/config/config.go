package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    Duration{Duration: 15 * time.Second},
			WriteTimeout:   Duration{Duration: 15 * time.Second},
			IdleTimeout:    Duration{Duration: 60 * time.Second},
			RequestTimeout: Duration{Duration: 15 * time.Second},
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Pool: PoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration{Duration: 5 * time.Minute},
			},
		},
		Cache: CacheConfig{
			Backend:           "memory",
			AvailableStockTTL: Duration{Duration: 10 * time.Second},
		},
		Inventory: InventoryConfig{
			HoldTTL: Duration{Duration: 120 * time.Second},
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration{Duration: 10 * time.Millisecond},
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Interval: Duration{Duration: 1 * time.Minute},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   600,
			Window:  Duration{Duration: 1 * time.Minute},
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			Environment: "development",
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// validate checks config consistency before startup.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q (want postgres, mysql, or memory)", c.Database.Driver)
	}

	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case "memory", "postgres", "mongodb", "none":
	default:
		return fmt.Errorf("unsupported cache backend %q (want memory, postgres, mongodb, or none)", c.Cache.Backend)
	}

	if c.Cache.Backend == "mongodb" && c.Cache.MongoDBURL == "" {
		return fmt.Errorf("cache backend mongodb requires mongodb_url")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}

	if c.Inventory.HoldTTL.Duration <= 0 {
		return fmt.Errorf("inventory hold_ttl must be positive")
	}

	return nil
}
