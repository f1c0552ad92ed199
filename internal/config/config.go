package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	Antibot   AntibotConfig   `yaml:"antibot"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Dedup     DedupConfig     `yaml:"dedup"`
	MX        MXConfig        `yaml:"mx"`
	DaData    DaDataConfig    `yaml:"dadata"`
	Captcha   CaptchaConfig   `yaml:"captcha"`
	Risk      RiskConfig      `yaml:"risk"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Blacklist BlacklistConfig `yaml:"blacklist"`
	Alerts    AlertConfig     `yaml:"alerts"`
	Report    ReportConfig    `yaml:"report"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Metrica   MetricaConfig   `yaml:"metrica"`
	CRM       CRMConfig       `yaml:"crm"`
	Export    ExportConfig    `yaml:"export"`
	Policy    PolicyConfig    `yaml:"policy"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AdminToken     string   `yaml:"admin_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// RedisConfig holds the shared TTL store connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// DatabaseConfig holds the PostgreSQL connection for the outcome log.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	// RetentionDays bounds how long lead_outcomes rows are kept.
	RetentionDays int `yaml:"retention_days"`
}

// Enabled reports whether a database URL was configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// AWSConfig holds the region/profile used by the export queue and report uploads.
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"` // Empty string uses default credential chain (IAM role on ECS)
	// Static keys, for S3-compatible storage outside AWS.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// Endpoint overrides the S3 endpoint, e.g. https://storage.yandexcloud.net
	Endpoint string `yaml:"endpoint"`
}

// GetProfile returns the AWS profile, with environment variable override
func (c AWSConfig) GetProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// AntibotConfig holds form timing bounds.
type AntibotConfig struct {
	MinFillSeconds int `yaml:"min_fill_seconds"`
	MaxAgeSeconds  int `yaml:"max_age_seconds"`
}

// RateLimitConfig holds admission windows.
type RateLimitConfig struct {
	PerIP         int `yaml:"per_ip"`
	PerPhone      int `yaml:"per_phone"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Window returns the admission window as a duration
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// DedupConfig holds the duplicate suppression window.
type DedupConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the dedup window as a duration
func (c DedupConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MXConfig controls the email MX lookup stage.
type MXConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MXConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DaDataConfig holds the phone/email verification provider settings.
type DaDataConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"api_key"`
	SecretKey      string `yaml:"secret_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CheckEmail     bool   `yaml:"check_email"`
}

// Timeout returns the configured timeout as a duration
func (c DaDataConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CaptchaConfig holds Yandex SmartCaptcha settings.
type CaptchaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServerKey      string `yaml:"server_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c CaptchaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RiskConfig holds campaign risk scoring thresholds.
type RiskConfig struct {
	DomesticSources   []string `yaml:"domestic_sources"`
	DomesticCountries []string `yaml:"domestic_countries"`
	RejectScore       int      `yaml:"reject_score"`
	WarnScore         int      `yaml:"warn_score"`
}

// AnalyticsConfig selects the aggregator backend: "memory" or "redis".
type AnalyticsConfig struct {
	Backend string `yaml:"backend"`
}

// BlacklistConfig holds the automatic placement blacklist rules.
type BlacklistConfig struct {
	MinLeads      int     `yaml:"min_leads"`
	RejectionRate float64 `yaml:"rejection_rate"`
	TTLDays       int     `yaml:"ttl_days"`
	IntervalHours int     `yaml:"interval_hours"`
}

// TTL returns the blacklist entry lifetime as a duration
func (c BlacklistConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// Interval returns the refresh interval as a duration
func (c BlacklistConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// AlertConfig holds bad-source alert thresholds.
type AlertConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinLeads      int     `yaml:"min_leads"`
	RejectionRate float64 `yaml:"rejection_rate"`
}

// ReportConfig holds the scheduled quality report settings.
type ReportConfig struct {
	Enabled            bool   `yaml:"enabled"`
	IntervalHours      int    `yaml:"interval_hours"`
	TopN               int    `yaml:"top_n"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3Prefix           string `yaml:"s3_prefix"`
	ResetAfterDispatch bool   `yaml:"reset_after_dispatch"`
}

// Interval returns the report interval as a duration
func (c ReportConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// TelegramConfig holds the notification bot settings.
type TelegramConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BotToken          string  `yaml:"bot_token"`
	ChatID            string  `yaml:"chat_id"`
	BaseURL           string  `yaml:"base_url"`
	MessagesPerSecond float64 `yaml:"messages_per_second"`
}

// MetricaConfig holds the offline conversion upload settings.
type MetricaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	CounterID string `yaml:"counter_id"`
	Token     string `yaml:"token"`
	Goal      string `yaml:"goal"`
	BaseURL   string `yaml:"base_url"`
}

// CRMConfig holds the Bitrix24 inbound webhook settings.
type CRMConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WebhookURL     string `yaml:"webhook_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c CRMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ExportConfig holds the accepted-lead SQS queue.
type ExportConfig struct {
	Enabled  bool   `yaml:"enabled"`
	QueueURL string `yaml:"queue_url"`
}

// PolicyConfig holds the per-dependency failure policy: "open" or "closed".
type PolicyConfig struct {
	Captcha      string `yaml:"captcha"`
	RateLimit    string `yaml:"rate_limit"`
	Dedup        string `yaml:"dedup"`
	MX           string `yaml:"mx"`
	Verification string `yaml:"verification"`
}

// IsClosed reports whether a policy value means fail-closed.
func IsClosed(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "closed")
}

// JobsConfig controls whether scheduled jobs also run inside the HTTP server.
type JobsConfig struct {
	RunInServer bool `yaml:"run_in_server"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.RetentionDays == 0 {
		cfg.Database.RetentionDays = 90
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "eu-central-1"
	}
	if cfg.Antibot.MinFillSeconds == 0 {
		cfg.Antibot.MinFillSeconds = 3
	}
	if cfg.Antibot.MaxAgeSeconds == 0 {
		cfg.Antibot.MaxAgeSeconds = 3600
	}
	if cfg.RateLimit.PerIP == 0 {
		cfg.RateLimit.PerIP = 10
	}
	if cfg.RateLimit.PerPhone == 0 {
		cfg.RateLimit.PerPhone = 5
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 3600
	}
	if cfg.Dedup.TTLSeconds == 0 {
		cfg.Dedup.TTLSeconds = 86400
	}
	if cfg.MX.TimeoutSeconds == 0 {
		cfg.MX.TimeoutSeconds = 3
	}
	if cfg.DaData.BaseURL == "" {
		cfg.DaData.BaseURL = "https://cleaner.dadata.ru"
	}
	if cfg.DaData.TimeoutSeconds == 0 {
		cfg.DaData.TimeoutSeconds = 5
	}
	if cfg.Captcha.BaseURL == "" {
		cfg.Captcha.BaseURL = "https://smartcaptcha.yandexcloud.net"
	}
	if cfg.Captcha.TimeoutSeconds == 0 {
		cfg.Captcha.TimeoutSeconds = 5
	}
	if len(cfg.Risk.DomesticSources) == 0 {
		cfg.Risk.DomesticSources = []string{"yandex", "ya", "direct", "yandex_direct", "rsya", "vk", "vkontakte", "mytarget", "dzen", "avito"}
	}
	if len(cfg.Risk.DomesticCountries) == 0 {
		cfg.Risk.DomesticCountries = []string{"RU"}
	}
	if cfg.Risk.RejectScore == 0 {
		cfg.Risk.RejectScore = 80
	}
	if cfg.Risk.WarnScore == 0 {
		cfg.Risk.WarnScore = 40
	}
	if cfg.Analytics.Backend == "" {
		cfg.Analytics.Backend = "memory"
	}
	if cfg.Blacklist.MinLeads == 0 {
		cfg.Blacklist.MinLeads = 10
	}
	if cfg.Blacklist.RejectionRate == 0 {
		cfg.Blacklist.RejectionRate = 70
	}
	if cfg.Blacklist.TTLDays == 0 {
		cfg.Blacklist.TTLDays = 21
	}
	if cfg.Blacklist.IntervalHours == 0 {
		cfg.Blacklist.IntervalHours = 24
	}
	if cfg.Alerts.MinLeads == 0 {
		cfg.Alerts.MinLeads = 5
	}
	if cfg.Alerts.RejectionRate == 0 {
		cfg.Alerts.RejectionRate = 50
	}
	if cfg.Report.IntervalHours == 0 {
		cfg.Report.IntervalHours = 24 * 7
	}
	if cfg.Report.TopN == 0 {
		cfg.Report.TopN = 10
	}
	if cfg.Report.S3Prefix == "" {
		cfg.Report.S3Prefix = "lead-quality/"
	}
	if cfg.Telegram.BaseURL == "" {
		cfg.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.MessagesPerSecond == 0 {
		cfg.Telegram.MessagesPerSecond = 1
	}
	if cfg.Metrica.BaseURL == "" {
		cfg.Metrica.BaseURL = "https://api-metrika.yandex.net"
	}
	if cfg.CRM.TimeoutSeconds == 0 {
		cfg.CRM.TimeoutSeconds = 5
	}
	// Policies default to fail-open
	for _, p := range []*string{&cfg.Policy.Captcha, &cfg.Policy.RateLimit, &cfg.Policy.Dedup, &cfg.Policy.MX, &cfg.Policy.Verification} {
		if *p == "" {
			*p = "open"
		}
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	overrideString(&cfg.Server.AdminToken, "ADMIN_TOKEN")
	overrideString(&cfg.Log.Level, "LOG_LEVEL")
	overrideString(&cfg.Redis.URL, "REDIS_URL")
	overrideString(&cfg.Database.URL, "DATABASE_URL")
	overrideString(&cfg.AWS.Region, "AWS_REGION")

	if v := os.Getenv("DADATA_API_KEY"); v != "" {
		cfg.DaData.APIKey = v
		cfg.DaData.Enabled = true
	}
	overrideString(&cfg.DaData.SecretKey, "DADATA_SECRET_KEY")
	if v := os.Getenv("DADATA_FAIL_OPEN"); v != "" {
		if open, err := strconv.ParseBool(v); err == nil && !open {
			cfg.Policy.Verification = "closed"
		}
	}
	if v := os.Getenv("SMARTCAPTCHA_SERVER_KEY"); v != "" {
		cfg.Captcha.ServerKey = v
		cfg.Captcha.Enabled = true
	}
	overrideString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overrideString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	overrideString(&cfg.Metrica.CounterID, "METRICA_COUNTER_ID")
	overrideString(&cfg.Metrica.Token, "METRICA_TOKEN")
	overrideString(&cfg.CRM.WebhookURL, "BITRIX_WEBHOOK_URL")
	overrideString(&cfg.Export.QueueURL, "EXPORT_QUEUE_URL")
	overrideString(&cfg.Report.S3Bucket, "REPORT_S3_BUCKET")

	overrideInt(&cfg.RateLimit.PerIP, "RATE_LIMIT_PER_IP")
	overrideInt(&cfg.RateLimit.PerPhone, "RATE_LIMIT_PER_PHONE")
	overrideInt(&cfg.Dedup.TTLSeconds, "DUPLICATE_CHECK_TTL")

	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
