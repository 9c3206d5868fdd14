package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"accessadmin.com/accessadmin/infrastructure/devops"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database" validate:"required"`
	HTTPAddr string         `yaml:"httpAddr" validate:"required"`
	Device   DeviceConfig   `yaml:"device" validate:"required"`
	Jobs     JobsConfig     `yaml:"jobs" validate:"required"`

	// PullLookback bounds the first pull when no watermark exists yet.
	PullLookback time.Duration `yaml:"pullLookback" validate:"gt=0"`
	// LedgerGuardWindow is how far back a prior SUCCESS suppresses a repeat push.
	LedgerGuardWindow time.Duration `yaml:"ledgerGuardWindow" validate:"gt=0"`

	RedisAddress  string      `yaml:"redisAddress"`
	Slack         SlackConfig `yaml:"slack"`
	SigningSecret string      `yaml:"-"`
	CORSOrigins   string      `yaml:"corsOrigins"`
	LogLevel      string      `yaml:"logLevel"`
}

type DatabaseConfig struct {
	Driver         string `yaml:"driver" validate:"oneof=mysql sqlite"`
	DSN            string `yaml:"-" validate:"required"`
	MaxConnections int    `yaml:"maxConnections" validate:"gte=1"`
}

type DeviceConfig struct {
	BaseURL            string         `yaml:"baseUrl" validate:"required,url"`
	Username           string         `yaml:"-" validate:"required"`
	Password           string         `yaml:"-" validate:"required"`
	AuthScheme         string         `yaml:"authScheme" validate:"required"`
	Timeout            time.Duration  `yaml:"timeout" validate:"gt=0"`
	TokenRefreshMargin time.Duration  `yaml:"tokenRefreshMargin" validate:"gte=0"`
	TokenTTL           time.Duration  `yaml:"tokenTTL" validate:"gt=0"`
	Timezone           string         `yaml:"timezone"`
	PageSize           int            `yaml:"pageSize" validate:"gte=1,lte=500"`
	DefaultDepartment  int64          `yaml:"defaultDepartment" validate:"gte=0"`
	Location           *time.Location `yaml:"-"`
}

type JobsConfig struct {
	PullCadence         time.Duration `yaml:"pull" validate:"gt=0"`
	PushCadence         time.Duration `yaml:"push" validate:"gt=0"`
	IdentitySyncCadence time.Duration `yaml:"identitySync" validate:"gt=0"`
	RunOnStart          bool          `yaml:"runOnStart"`
}

type SlackConfig struct {
	Token          string `yaml:"-"`
	InfoChannelID  string `yaml:"infoChannel"`
	ErrorChannelID string `yaml:"errorChannel"`
}

func (c SlackConfig) Enabled() bool {
	return c.Token != ""
}

// Load assembles the configuration from .env, the environment, an optional
// YAML overlay (CONFIG_FILE) and, when DEVICE_CREDENTIALS_PARAM is set, the
// device credentials stored in SSM.
func Load(ctx context.Context) (*Config, error) {
	// Load env from .env
	godotenv.Load()

	cfg := FromEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if param := strings.TrimSpace(os.Getenv("DEVICE_CREDENTIALS_PARAM")); param != "" {
		creds, err := devops.LoadDeviceCredentials(ctx, param)
		if err != nil {
			return nil, fmt.Errorf("device credentials: %w", err)
		}
		cfg.Device.Username = creds.Username
		cfg.Device.Password = creds.Password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads every recognised option from the environment, falling back to
// defaults. It performs no validation.
func FromEnv() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:         stringFromEnv("DB_DRIVER", "mysql"),
			DSN:            os.Getenv("DSN"),
			MaxConnections: intFromEnv("DB_MAX_CONNECTIONS", 10),
		},
		HTTPAddr: stringFromEnv("HTTP_ADDR", "0.0.0.0:8090"),
		Device: DeviceConfig{
			BaseURL:            strings.TrimRight(os.Getenv("DEVICE_API_URL"), "/"),
			Username:           os.Getenv("DEVICE_API_USERNAME"),
			Password:           os.Getenv("DEVICE_API_PASSWORD"),
			AuthScheme:         stringFromEnv("DEVICE_API_AUTH_SCHEME", "JWT"),
			Timeout:            time.Duration(intFromEnv("DEVICE_API_TIMEOUT_SECONDS", 30)) * time.Second,
			TokenRefreshMargin: time.Duration(intFromEnv("DEVICE_TOKEN_REFRESH_MARGIN_MINUTES", 5)) * time.Minute,
			TokenTTL:           time.Duration(intFromEnv("DEVICE_TOKEN_TTL_MINUTES", 60)) * time.Minute,
			Timezone:           stringFromEnv("DEVICE_TIMEZONE", "UTC"),
			PageSize:           intFromEnv("DEVICE_API_PAGE_SIZE", 50),
			DefaultDepartment:  int64(intFromEnv("DEVICE_DEFAULT_DEPARTMENT", 1)),
		},
		Jobs: JobsConfig{
			PullCadence:         time.Duration(intFromEnv("PULL_CADENCE_MINUTES", 5)) * time.Minute,
			PushCadence:         time.Duration(intFromEnv("PUSH_CADENCE_MINUTES", 5)) * time.Minute,
			IdentitySyncCadence: time.Duration(intFromEnv("IDENTITY_SYNC_CADENCE_MINUTES", 60)) * time.Minute,
			RunOnStart:          boolFromEnv("RUN_ON_START", false),
		},
		PullLookback:      time.Duration(intFromEnv("PULL_LOOKBACK_HOURS", 24)) * time.Hour,
		LedgerGuardWindow: time.Duration(intFromEnv("LEDGER_GUARD_WINDOW_MINUTES", 60)) * time.Minute,
		RedisAddress:      os.Getenv("REDIS_ADDRESS"),
		Slack: SlackConfig{
			Token:          os.Getenv("SLACK_BOT_TOKEN"),
			InfoChannelID:  os.Getenv("SLACK_INFO_CHANNEL"),
			ErrorChannelID: os.Getenv("SLACK_ERROR_CHANNEL"),
		},
		SigningSecret: os.Getenv("SIGNING_SECRET"),
		CORSOrigins:   stringFromEnv("CORS_ORIGINS", "*"),
		LogLevel:      stringFromEnv("LOG_LEVEL", "info"),
	}
}

// applyFile overlays non-secret settings from a YAML file. Durations use Go
// syntax ("5m", "1h").
func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the struct tags and resolves the device timezone.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return fmt.Errorf("invalid DEVICE_TIMEZONE %q: %w", c.Device.Timezone, err)
	}
	c.Device.Location = loc
	return nil
}

func stringFromEnv(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
