// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Session storage backends
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const defaultAPIURL = "https://hypo-backend-1.onrender.com/def"

// Config is the full application configuration
type Config struct {
	API      APIConfig
	Session  SessionConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Cache    CacheConfig
	Gateway  GatewayConfig
	Consul   ConsulConfig
	S3       S3Config
}

// APIConfig locates the backend
type APIConfig struct {
	URL     string
	// Service, when set, is resolved through Consul before each request
	Service string
	Timeout time.Duration
}

// SessionConfig selects where the session is persisted
type SessionConfig struct {
	Backend      string
	Profile      string
	SQLitePath   string
	TTL          time.Duration
	LoginTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

// CacheConfig controls the redis read cache for article lists
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type GatewayConfig struct {
	Port           string
	AllowedOrigins []string
	// AdvertiseAddr is the address registered in Consul
	AdvertiseAddr  string
	Register       bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type ConsulConfig struct {
	Addr  string
	Token string
}

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{}

	cfg.API.URL = GetEnvOrDefault("ESSENCE_API_URL", defaultAPIURL)
	cfg.API.Service = os.Getenv("ESSENCE_API_SERVICE")
	var err error
	cfg.API.Timeout, err = GetDurationOrDefault("API_TIMEOUT", 10*time.Second)
	collect(err)

	cfg.Session.Backend = GetEnvOrDefault("SESSION_BACKEND", BackendSQLite)
	cfg.Session.Profile = GetEnvOrDefault("SESSION_PROFILE", "default")
	cfg.Session.SQLitePath = GetEnvOrDefault("SESSION_SQLITE_PATH", defaultSQLitePath())
	cfg.Session.TTL, err = GetDurationOrDefault("SESSION_TTL", 0)
	collect(err)
	cfg.Session.LoginTimeout, err = GetDurationOrDefault("LOGIN_TIMEOUT", 10*time.Second)
	collect(err)

	cfg.Redis.Addr = GetEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB, err = GetIntOrDefault("REDIS_DB", 0)
	collect(err)

	cfg.Postgres.DSN = os.Getenv("POSTGRES_DSN")

	cfg.Cache.Enabled, err = GetBoolOrDefault("CACHE_ENABLED", false)
	collect(err)
	cfg.Cache.TTL, err = GetDurationOrDefault("CACHE_TTL", 2*time.Minute)
	collect(err)

	cfg.Gateway.Port = GetEnvOrDefault("GATEWAY_PORT", "8080")
	cfg.Gateway.AllowedOrigins = GetListOrDefault("GATEWAY_ALLOWED_ORIGINS",
		[]string{"http://localhost:3000", "http://localhost:5173"})
	cfg.Gateway.AdvertiseAddr = GetEnvOrDefault("GATEWAY_ADVERTISE_ADDR", "localhost")
	cfg.Gateway.Register, err = GetBoolOrDefault("CONSUL_REGISTER", false)
	collect(err)
	cfg.Gateway.ReadTimeout, err = GetDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	collect(err)
	cfg.Gateway.WriteTimeout, err = GetDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.Gateway.IdleTimeout, err = GetDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	collect(err)
	cfg.Gateway.ShutdownTimeout, err = GetDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(err)

	cfg.Consul.Addr = GetEnvOrDefault("CONSUL_HTTP_ADDR", "localhost:8500")
	cfg.Consul.Token = os.Getenv("CONSUL_HTTP_TOKEN")

	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.PublicEndpoint = os.Getenv("S3_PUBLIC_ENDPOINT")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.S3.Bucket = os.Getenv("S3_BUCKET_NAME")
	cfg.S3.Region = GetEnvOrDefault("S3_REGION", "us-east-1")
	cfg.S3.UseSSL, err = GetBoolOrDefault("S3_USE_SSL", false)
	collect(err)

	collect(cfg.Validate())
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings each selected component needs
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case BackendSQLite:
		if c.Session.SQLitePath == "" {
			return errors.New("SESSION_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres session backend: POSTGRES_DSN is required")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q (want sqlite, redis, postgres or memory)", c.Session.Backend)
	}

	if c.Session.Profile == "" {
		return errors.New("SESSION_PROFILE must not be empty")
	}
	if c.API.URL == "" && c.API.Service == "" {
		return errors.New("one of ESSENCE_API_URL or ESSENCE_API_SERVICE is required")
	}
	if c.S3.Endpoint != "" && (c.S3.AccessKey == "" || c.S3.SecretKey == "" || c.S3.Bucket == "") {
		return errors.New("avatar storage: S3_ACCESS_KEY, S3_SECRET_KEY and S3_BUCKET_NAME are required with S3_ENDPOINT")
	}
	return nil
}

// defaultSQLitePath is essence/session.db under the user config directory
func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "essence-session.db"
	}
	return filepath.Join(dir, "essence", "session.db")
}
