package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// RedisAddr selects the redis-backed session store when non-empty;
	// the in-memory TTL store is used otherwise.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`

	AccessTokenTTLMin   int `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`

	LivenessIntervalSec int `mapstructure:"LIVENESS_INTERVAL_SEC"`
	LivenessTimeoutSec  int `mapstructure:"LIVENESS_TIMEOUT_SEC"`

	ParticipantCap int `mapstructure:"PARTICIPANT_CAP"`
}

// AccessTokenTTL returns the access credential lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the refresh credential (and AuthSession) lifetime.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLHour) * time.Hour
}

// LivenessInterval returns the ping/sweep cadence for open connections.
func (c *ServerConfig) LivenessInterval() time.Duration {
	return time.Duration(c.LivenessIntervalSec) * time.Second
}

// LivenessTimeout returns how stale a connection's last pong may be before
// the sweep removes it.
func (c *ServerConfig) LivenessTimeout() time.Duration {
	return time.Duration(c.LivenessTimeoutSec) * time.Second
}

// Validate rejects configurations the runtime cannot honor.
func (c *ServerConfig) Validate() error {
	if c.JWTSecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY must be set")
	}
	if c.LivenessTimeoutSec < 2*c.LivenessIntervalSec {
		return fmt.Errorf("LIVENESS_TIMEOUT_SEC (%d) must be at least twice LIVENESS_INTERVAL_SEC (%d)",
			c.LivenessTimeoutSec, c.LivenessIntervalSec)
	}
	if c.ParticipantCap <= 0 {
		return fmt.Errorf("PARTICIPANT_CAP must be positive")
	}
	return nil
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/hearthlink/")
	v.AddConfigPath("$HOME/.hearthlink")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "hearthlink-core")
	v.SetDefault("JWT_AUDIENCE", "hearthlink")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)       // 1 hour
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 7*24)   // 7 days
	v.SetDefault("LIVENESS_INTERVAL_SEC", 30)
	v.SetDefault("LIVENESS_TIMEOUT_SEC", 65)
	v.SetDefault("PARTICIPANT_CAP", 20)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
