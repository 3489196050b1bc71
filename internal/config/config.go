// Package config loads service configuration from an optional YAML file with
// environment variable overrides, falling back to local-development defaults.
package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "ROADMAP_CONFIG"
	httpAddrEnv     = "HTTP_ADDR"
	redisAddrEnv    = "REDIS_ADDR"
	sqlitePathEnv   = "SQLITE_PATH"
	jwtSecretEnv    = "JWT_SECRET"
	otlpEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
	environmentEnv  = "OTEL_RESOURCE_ATTRIBUTES_ENV"
)

// Config holds the settings shared by all binaries.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// HTTPConfig describes the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig covers both the progress store and the event bus.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// SQLiteConfig locates the durable store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig wires token issuance.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	AccessTTL time.Duration `yaml:"accessTTL"`
}

// TelemetryConfig points at the OTLP collector.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	Environment  string `yaml:"environment"`
}

func defaultConfig() Config {
	return Config{
		HTTP:   HTTPConfig{Addr: ":8080"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		SQLite: SQLiteConfig{Path: "./data/roadmap.db"},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			AccessTTL: 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			Environment:  "local",
		},
	}
}

// Load reads the YAML file named by ROADMAP_CONFIG (if any) and applies
// environment overrides on top of the defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(otlpEndpointEnv); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv(environmentEnv); v != "" {
		c.Telemetry.Environment = v
	}
}
