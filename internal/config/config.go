// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"` // public base URL used in redirect links
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StripeConfig struct {
	SecretKey          string `yaml:"secret_key"`
	WebhookSecret      string `yaml:"webhook_secret"`
	SubscriptionAmount int64  `yaml:"subscription_amount"` // minor units recorded on subscription payments
	Currency           string `yaml:"currency"`
	PortalReturnURL    string `yaml:"portal_return_url"`
	SuccessPath        string `yaml:"success_path"`
	CancelPath         string `yaml:"cancel_path"`
}

// StorageConfig targets an S3-compatible bucket (Cloudflare R2 in production).
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Workers  int    `yaml:"workers"`
}

type SecurityConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	AccessCodeCost int    `yaml:"access_code_cost"` // bcrypt cost
}

type PDFConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	MaxFiles      int `yaml:"max_files"`
}

// ThrottleConfig holds per-user daily request limits.
type ThrottleConfig struct {
	PaymentIntentPerDay int `yaml:"payment_intent_per_day"`
	SubscriptionPerDay  int `yaml:"subscription_per_day"`
	PDFPerDay           int `yaml:"pdf_per_day"`
	AccessCodePerDay    int `yaml:"access_code_per_day"`
}

type Config struct {
	HTTP           HTTPConfig     `yaml:"http"`
	Log            LogConfig      `yaml:"log"`
	Database       DatabaseConfig `yaml:"database"`
	Redis          RedisConfig    `yaml:"redis"`
	Stripe         StripeConfig   `yaml:"stripe"`
	Storage        StorageConfig  `yaml:"storage"`
	Mail           MailConfig     `yaml:"mail"`
	Security       SecurityConfig `yaml:"security"`
	PDF            PDFConfig      `yaml:"pdf"`
	Throttle       ThrottleConfig `yaml:"throttle"`
	ExemptedEmails []string       `yaml:"exempted_emails"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from
// the environment before parsing so secrets can stay out of the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(b))))
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	cfg.ExemptedEmails = append(cfg.ExemptedEmails, exemptedFromEnv(os.Environ())...)
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates required fields.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("stripe.secret_key is required")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("stripe.webhook_secret is required")
	}
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 45 * time.Second
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 25
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "eur"
	}
	if cfg.Stripe.SubscriptionAmount <= 0 {
		cfg.Stripe.SubscriptionAmount = 599
	}
	if cfg.Stripe.SuccessPath == "" {
		cfg.Stripe.SuccessPath = "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if cfg.Stripe.CancelPath == "" {
		cfg.Stripe.CancelPath = "/payment/cancel"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Mail.Workers <= 0 {
		cfg.Mail.Workers = 2
	}
	if cfg.Security.AccessCodeCost <= 0 {
		cfg.Security.AccessCodeCost = 10
	}
	if cfg.PDF.MaxConcurrent <= 0 {
		cfg.PDF.MaxConcurrent = 4
	}
	if cfg.PDF.MaxFiles <= 0 {
		cfg.PDF.MaxFiles = 20
	}
	if cfg.Throttle.PaymentIntentPerDay <= 0 {
		cfg.Throttle.PaymentIntentPerDay = 8
	}
	if cfg.Throttle.SubscriptionPerDay <= 0 {
		cfg.Throttle.SubscriptionPerDay = 6
	}
	if cfg.Throttle.PDFPerDay <= 0 {
		cfg.Throttle.PDFPerDay = 6
	}
	if cfg.Throttle.AccessCodePerDay <= 0 {
		cfg.Throttle.AccessCodePerDay = 6
	}
}

// exemptedFromEnv collects addresses from MAIL_XP* variables.
func exemptedFromEnv(environ []string) []string {
	var out []string
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "MAIL_XP") {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
