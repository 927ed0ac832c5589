package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
)

const (
	defaultAddress        = ":4000"
	defaultDriver         = "mysql"
	defaultMaxOpenConns   = 25
	defaultConnectTimeout = 30 * time.Second
	defaultAccessTTL      = 30 * 24 * time.Hour
	defaultLockTTL        = 10 * time.Second
	defaultLockWait       = 3 * time.Second
	defaultAuditRegion    = "us-east-1"
)

type Server struct {
	Address        string   `yaml:"address" env:"SERVER_ADDRESS"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type Database struct {
	Driver         string        `yaml:"driver" env:"DB_DRIVER"`
	URL            string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns   int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT"`
}

// Redis backs the shared record locks. An empty Addr selects in-process locks.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	AccessTTL time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL"`
}

type Locks struct {
	TTL  time.Duration `yaml:"ttl" env:"LOCK_TTL"`
	Wait time.Duration `yaml:"wait" env:"LOCK_WAIT"`
}

// Push enables FCM notifications when CredentialsFile is set.
type Push struct {
	CredentialsFile string `yaml:"credentials_file" env:"FIREBASE_CREDENTIALS"`
}

// Audit enables the recycling record archive when Bucket is set.
type Audit struct {
	Bucket    string `yaml:"bucket" env:"AUDIT_BUCKET"`
	Region    string `yaml:"region" env:"AUDIT_REGION"`
	Endpoint  string `yaml:"endpoint" env:"AUDIT_ENDPOINT"`
	Prefix    string `yaml:"prefix" env:"AUDIT_PREFIX"`
	AccessKey string `yaml:"access_key" env:"AUDIT_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"AUDIT_SECRET_KEY"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Locks    Locks    `yaml:"locks"`
	Push     Push     `yaml:"push"`
	Audit    Audit    `yaml:"audit"`
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "unmarshal config file")
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = defaultConnectTimeout
	}
	if c.Auth.AccessTTL <= 0 {
		c.Auth.AccessTTL = defaultAccessTTL
	}
	if c.Locks.TTL <= 0 {
		c.Locks.TTL = defaultLockTTL
	}
	if c.Locks.Wait <= 0 {
		c.Locks.Wait = defaultLockWait
	}
	if c.Audit.Region == "" {
		c.Audit.Region = defaultAuditRegion
	}
}

// Validate reports the first setting the server cannot start without.
func (c Config) Validate() error {
	if _, err := repositories.DialectFor(c.Database.Driver); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Locks.TTL <= c.Locks.Wait {
		return errors.New("lock ttl must be longer than lock wait")
	}
	return nil
}
