package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Transfer rail modes.
const (
	TransferModeHTTP     = "http"
	TransferModeLoopback = "loopback"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // memory, postgres
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"` // create tables on startup
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	NonceTTL time.Duration `mapstructure:"nonce_ttl"`
	IdemTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// VaultConfig seeds the safety controller. Admin is fixed for the lifetime of
// the deployment; DepositCap only seeds a fresh store.
type VaultConfig struct {
	Admin      string        `mapstructure:"admin"`
	DepositCap int64         `mapstructure:"deposit_cap"`
	LockWait   time.Duration `mapstructure:"lock_wait"` // max wait for the ledger lock, 0 = until request ends
}

type TransferConfig struct {
	Mode    string        `mapstructure:"mode"` // http, loopback
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	URLs    []string      `mapstructure:"urls"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
	Buffer  int           `mapstructure:"buffer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Vault.Admin) == "" {
		errs = append(errs, errors.New("vault.admin is required"))
	}
	if c.Vault.DepositCap < 0 {
		errs = append(errs, errors.New("vault.deposit_cap must not be negative"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}

	switch c.Database.Driver {
	case DriverMemory, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	switch c.Transfer.Mode {
	case TransferModeLoopback:
	case TransferModeHTTP:
		if c.Transfer.URL == "" {
			errs = append(errs, errors.New("transfer.url is required in http mode"))
		}
		if c.Transfer.Secret == "" {
			errs = append(errs, errors.New("transfer.secret is required in http mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("transfer.mode %q is not supported", c.Transfer.Mode))
	}

	if len(c.Webhook.URLs) > 0 && c.Webhook.Secret == "" {
		errs = append(errs, errors.New("webhook.secret is required when webhook.urls is set"))
	}

	return errors.Join(errs...)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CV_ (custody vault).
// Nested keys use underscore: CV_VAULT_ADMIN, CV_DATABASE_DRIVER, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "custody_vault")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.nonce_ttl", "5m")
	v.SetDefault("redis.idempotency_ttl", "24h")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "custody-vault")
	v.SetDefault("vault.admin", "")
	v.SetDefault("vault.deposit_cap", 0)
	v.SetDefault("vault.lock_wait", "5s")
	v.SetDefault("transfer.mode", TransferModeLoopback)
	v.SetDefault("transfer.url", "")
	v.SetDefault("transfer.secret", "")
	v.SetDefault("transfer.timeout", "10s")
	v.SetDefault("webhook.urls", []string{})
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.buffer", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// CV_VAULT_ADMIN -> vault.admin
	v.SetEnvPrefix("CV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can carry everything.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
