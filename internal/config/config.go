package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zewo/opsdash/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Gate      GateConfig
	Vault     VaultConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig selects the durable item store. An empty URI keeps items in memory.
type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// RedisConfig is optional; an empty Host disables Redis-backed limiters and revocation.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MinIOConfig is optional; an empty Endpoint stores file content inline with its item.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type GateConfig struct {
	// Passphrase is the plain passphrase or its bcrypt hash.
	Passphrase string
	Secret     string
	SessionTTL time.Duration
	CookieName string
}

type VaultConfig struct {
	MaxUploadBytes int64
	ExtraKinds     []string
	PinAttempts    int
	PinWindow      time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	RPS      float64
	Burst    int
	UseRedis bool
	Window   time.Duration
}

type LogConfig struct {
	Level string
	JSON  bool
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// IsProduction reports whether secure cookies and JSON logs should be used.
func (s ServerConfig) IsProduction() bool { return strings.EqualFold(s.Environment, "production") }

// Addr returns host:port for Redis, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("MONGODB_DATABASE", "opsdash")
	v.SetDefault("MONGODB_COLLECTION", "vault_items")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_BUCKET", "opsdash-vault")
	v.SetDefault("GATE_SESSION_TTL", 24*60)
	v.SetDefault("GATE_COOKIE_NAME", "opsdash_session")
	v.SetDefault("VAULT_MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("VAULT_PIN_ATTEMPTS", 5)
	v.SetDefault("VAULT_PIN_WINDOW", 300)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW", 1)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Gate: GateConfig{
			Passphrase: v.GetString("GATE_PASSPHRASE"),
			Secret:     v.GetString("GATE_SECRET"),
			SessionTTL: time.Duration(v.GetInt("GATE_SESSION_TTL")) * time.Minute,
			CookieName: v.GetString("GATE_COOKIE_NAME"),
		},
		Vault: VaultConfig{
			MaxUploadBytes: v.GetInt64("VAULT_MAX_UPLOAD_BYTES"),
			ExtraKinds:     splitList(v.GetString("VAULT_EXTRA_KINDS")),
			PinAttempts:    v.GetInt("VAULT_PIN_ATTEMPTS"),
			PinWindow:      time.Duration(v.GetInt("VAULT_PIN_WINDOW")) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:      v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:    v.GetInt("RATE_LIMIT_BURST"),
			UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
		Log: LogConfig{Level: v.GetString("LOG_LEVEL")},
	}
	cfg.Log.JSON = cfg.Server.IsProduction()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Gate.Secret == "" {
		logger.Warnf("GATE_SECRET is not set; sessions will not survive a restart")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gate.Passphrase == "" {
		return fmt.Errorf("environment variable GATE_PASSPHRASE is required")
	}
	if c.Gate.Secret != "" && len(c.Gate.Secret) < 16 {
		return fmt.Errorf("GATE_SECRET must be at least 16 characters")
	}
	if c.Vault.MaxUploadBytes <= 0 {
		return fmt.Errorf("VAULT_MAX_UPLOAD_BYTES must be positive")
	}
	if c.MinIO.Endpoint != "" && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}
	if c.RateLimit.UseRedis && c.Redis.Host == "" {
		return fmt.Errorf("RATE_LIMIT_USE_REDIS requires REDIS_HOST")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
