// Package config loads service configuration from an optional YAML file
// overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"societycore/pkg/logger"
)

// HTTP configures the API listener.
type HTTP struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
	PublicBaseURL string        `mapstructure:"public_base_url" yaml:"public_base_url"` // Used to build redirect links in dispatched messages.
}

// Storage selects the persistent store driver.
type Storage struct {
	Driver      string `mapstructure:"driver" yaml:"driver"` // memory | sqlite | postgres
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"` // Secret: contains credentials
}

// Blob selects the document content store.
type Blob struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // fs | memory | s3
	Root            string        `mapstructure:"root" yaml:"root"`
	Bucket          string        `mapstructure:"bucket" yaml:"bucket"`
	Region          string        `mapstructure:"region" yaml:"region"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle    bool          `mapstructure:"use_path_style" yaml:"use_path_style"`
	AccessKeyID     string        `mapstructure:"access_key_id" yaml:"access_key_id"`         // Secret
	SecretAccessKey string        `mapstructure:"secret_access_key" yaml:"secret_access_key"` // Secret
	PresignTTL      time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl"`
}

// Auth tunes credential and one-time code handling.
type Auth struct {
	SessionTTL         time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	CodeTTL            time.Duration `mapstructure:"code_ttl" yaml:"code_ttl"`
	MaxCodeAttempts    int           `mapstructure:"max_code_attempts" yaml:"max_code_attempts"`
	LockoutThreshold   int           `mapstructure:"lockout_threshold" yaml:"lockout_threshold"`
	LockoutDuration    time.Duration `mapstructure:"lockout_duration" yaml:"lockout_duration"`
	TempPasswordLength int           `mapstructure:"temp_password_length" yaml:"temp_password_length"`
	MinPasswordLength  int           `mapstructure:"min_password_length" yaml:"min_password_length"`
}

// Notify selects the one-time code dispatcher.
type Notify struct {
	Driver      string `mapstructure:"driver" yaml:"driver"` // log | rabbitmq
	URL         string `mapstructure:"url" yaml:"url"`       // Secret: AMQP URL
	QueuePrefix string `mapstructure:"queue_prefix" yaml:"queue_prefix"`
}

// Events selects the audit event publisher.
type Events struct {
	Driver  string   `mapstructure:"driver" yaml:"driver"` // nop | kafka
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// Billing configures the payment gateway.
type Billing struct {
	StripeSecretKey string `mapstructure:"stripe_secret_key" yaml:"stripe_secret_key"` // Secret
	WebhookSecret   string `mapstructure:"webhook_secret" yaml:"webhook_secret"`       // Secret: Stripe endpoint signing secret
	SuccessURL      string `mapstructure:"success_url" yaml:"success_url"`
	CancelURL       string `mapstructure:"cancel_url" yaml:"cancel_url"`
	Currency        string `mapstructure:"currency" yaml:"currency"`
}

// Config is the root configuration document.
type Config struct {
	HTTP    HTTP          `mapstructure:"http" yaml:"http"`
	Storage Storage       `mapstructure:"storage" yaml:"storage"`
	Blob    Blob          `mapstructure:"blob" yaml:"blob"`
	Auth    Auth          `mapstructure:"auth" yaml:"auth"`
	Notify  Notify        `mapstructure:"notify" yaml:"notify"`
	Events  Events        `mapstructure:"events" yaml:"events"`
	Billing Billing       `mapstructure:"billing" yaml:"billing"`
	Log     logger.Config `mapstructure:"log" yaml:"log"`
}

// Load reads filePath when it exists, applies environment overrides and
// defaults, then validates the result. An empty filePath reads env only.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", filePath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Events.Brokers = splitList(cfg.Events.Brokers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var defaults = map[string]any{
	"http.addr":                 ":8080",
	"http.read_timeout":         "15s",
	"http.write_timeout":        "30s",
	"http.shutdown_grace":       "10s",
	"storage.driver":            "sqlite",
	"storage.sqlite_path":       "societycore.db",
	"blob.driver":               "fs",
	"blob.root":                 "blobdata",
	"blob.presign_ttl":          "15m",
	"auth.session_ttl":          "12h",
	"auth.code_ttl":             "10m",
	"auth.max_code_attempts":    5,
	"auth.lockout_threshold":    5,
	"auth.lockout_duration":     "15m",
	"auth.temp_password_length": 12,
	"auth.min_password_length":  8,
	"notify.driver":             "log",
	"notify.queue_prefix":       "societycore.notify",
	"events.driver":             "nop",
	"events.topic":              "societycore.audit",
	"billing.currency":          "inr",
	"log.level":                 "info",
}

var envBindings = map[string][]string{
	"http.addr":                 {"SOCIETYCORE_HTTP_ADDR", "PORT_ADDR"},
	"http.public_base_url":      {"SOCIETYCORE_PUBLIC_BASE_URL", "SITE_URL"},
	"storage.driver":            {"SOCIETYCORE_STORAGE_DRIVER"},
	"storage.sqlite_path":       {"SOCIETYCORE_SQLITE_PATH"},
	"storage.postgres_dsn":      {"SOCIETYCORE_POSTGRES_DSN", "DATABASE_URL"},
	"blob.driver":               {"SOCIETYCORE_BLOB_DRIVER"},
	"blob.root":                 {"SOCIETYCORE_BLOB_FS_ROOT"},
	"blob.bucket":               {"SOCIETYCORE_BLOB_S3_BUCKET"},
	"blob.region":               {"SOCIETYCORE_BLOB_S3_REGION", "AWS_REGION"},
	"blob.endpoint":             {"SOCIETYCORE_BLOB_S3_ENDPOINT"},
	"blob.use_path_style":       {"SOCIETYCORE_BLOB_S3_PATH_STYLE"},
	"blob.access_key_id":        {"SOCIETYCORE_BLOB_S3_ACCESS_KEY_ID"},
	"blob.secret_access_key":    {"SOCIETYCORE_BLOB_S3_SECRET_ACCESS_KEY"},
	"auth.session_ttl":          {"SOCIETYCORE_SESSION_TTL"},
	"auth.code_ttl":             {"SOCIETYCORE_CODE_TTL"},
	"auth.max_code_attempts":    {"SOCIETYCORE_MAX_CODE_ATTEMPTS"},
	"auth.lockout_threshold":    {"SOCIETYCORE_LOCKOUT_THRESHOLD"},
	"auth.lockout_duration":     {"SOCIETYCORE_LOCKOUT_DURATION"},
	"auth.temp_password_length": {"SOCIETYCORE_TEMP_PASSWORD_LENGTH"},
	"notify.driver":             {"SOCIETYCORE_NOTIFY_DRIVER"},
	"notify.url":                {"SOCIETYCORE_AMQP_URL", "RABBITMQ_URL"},
	"notify.queue_prefix":       {"SOCIETYCORE_NOTIFY_QUEUE_PREFIX"},
	"events.driver":             {"SOCIETYCORE_EVENTS_DRIVER"},
	"events.brokers":            {"SOCIETYCORE_KAFKA_BROKERS", "KAFKA_BROKERS"},
	"events.topic":              {"SOCIETYCORE_KAFKA_TOPIC"},
	"billing.stripe_secret_key": {"SOCIETYCORE_STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY"},
	"billing.webhook_secret":    {"SOCIETYCORE_STRIPE_WEBHOOK_SECRET", "STRIPE_WEBHOOK_SECRET"},
	"billing.success_url":       {"SOCIETYCORE_BILLING_SUCCESS_URL"},
	"billing.cancel_url":        {"SOCIETYCORE_BILLING_CANCEL_URL"},
	"billing.currency":          {"SOCIETYCORE_BILLING_CURRENCY"},
	"log.level":                 {"SOCIETYCORE_LOG_LEVEL", "LOG_LEVEL"},
	"log.development":           {"SOCIETYCORE_LOG_DEVELOPMENT"},
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "memory":
	case "fs":
		if c.Blob.Root == "" {
			errs = append(errs, errors.New("blob.root is required for the fs driver"))
		}
	case "s3":
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob.driver %q", c.Blob.Driver))
	}
	switch c.Notify.Driver {
	case "log":
	case "rabbitmq":
		if c.Notify.URL == "" {
			errs = append(errs, errors.New("notify.url is required for the rabbitmq driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify.driver %q", c.Notify.Driver))
	}
	switch c.Events.Driver {
	case "nop":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			errs = append(errs, errors.New("events.brokers is required for the kafka driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.driver %q", c.Events.Driver))
	}
	if c.Auth.TempPasswordLength < 8 {
		errs = append(errs, errors.New("auth.temp_password_length must be at least 8"))
	}
	if c.Auth.MinPasswordLength < 1 {
		errs = append(errs, errors.New("auth.min_password_length must be positive"))
	}
	if c.Auth.MaxCodeAttempts < 1 {
		errs = append(errs, errors.New("auth.max_code_attempts must be positive"))
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.CodeTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl and auth.code_ttl must be positive"))
	}
	return errors.Join(errs...)
}
