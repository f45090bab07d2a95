package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant     string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	ServiceTokenKey   string   `mapstructure:"SERVICE_TOKEN_SECRET"`
	ServiceTokenTTL   int      `mapstructure:"SERVICE_TOKEN_TTL_HOURS"`
	NodeRewriteHosts  bool     `mapstructure:"NODE_REWRITE_HOSTS"`
	NodePrivateHost   string   `mapstructure:"NODE_PRIVATE_HOST"`
	NodePrivatePort   string   `mapstructure:"NODE_PRIVATE_PORT"`
	NodeFetchTimeoutS int      `mapstructure:"NODE_FETCH_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SERVICE_TOKEN_TTL_HOURS", 24)
	v.SetDefault("NODE_REWRITE_HOSTS", false)
	v.SetDefault("NODE_FETCH_TIMEOUT_SECONDS", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SERVICE_TOKEN_SECRET")
	v.BindEnv("SERVICE_TOKEN_TTL_HOURS")
	v.BindEnv("NODE_REWRITE_HOSTS")
	v.BindEnv("NODE_PRIVATE_HOST")
	v.BindEnv("NODE_PRIVATE_PORT")
	v.BindEnv("NODE_FETCH_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.ServiceTokenKey == "" {
		log.Println("WARNING: SERVICE_TOKEN_SECRET is not set; a random key will be generated at startup.")
		log.Println("WARNING: Peripheral nodes will not be able to verify tokens across restarts.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ServiceTokenValidity returns the lifetime of minted node-to-node tokens.
func (c *Config) ServiceTokenValidity() time.Duration {
	hours := c.ServiceTokenTTL
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// NodeFetchTimeout returns the bound on a single outbound document fetch.
// The peer node is untrusted infrastructure, so this is never unlimited.
func (c *Config) NodeFetchTimeout() time.Duration {
	secs := c.NodeFetchTimeoutS
	if secs <= 0 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without a stable HMAC secret for node-to-node tokens, and host
// rewriting requires a private host to rewrite to.
func (c *Config) Validate() error {
	if c.IsProduction() && c.ServiceTokenKey == "" {
		return fmt.Errorf("SERVICE_TOKEN_SECRET is required in production")
	}
	if c.ServiceTokenKey != "" && len(c.ServiceTokenKey) < 32 {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must be at least 32 characters, got %d", len(c.ServiceTokenKey))
	}
	if c.NodeRewriteHosts && c.NodePrivateHost == "" {
		return fmt.Errorf("NODE_PRIVATE_HOST is required when NODE_REWRITE_HOSTS is true")
	}
	return nil
}
