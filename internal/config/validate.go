package config

import (
	"fmt"
	"strings"
)

// ConfigurationError lists features that are enabled but cannot run.
// It is never resolved by a fail-open policy; the process refuses to start.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks that every enabled feature has what it needs.
func (cfg *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.DaData.Enabled && cfg.DaData.APIKey == "" {
		add("dadata enabled without api_key")
	}
	if cfg.Captcha.Enabled && cfg.Captcha.ServerKey == "" {
		add("captcha enabled without server_key")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "") {
		add("telegram enabled without bot_token/chat_id")
	}
	if cfg.Metrica.Enabled && (cfg.Metrica.CounterID == "" || cfg.Metrica.Token == "" || cfg.Metrica.Goal == "") {
		add("metrica enabled without counter_id/token/goal")
	}
	if cfg.CRM.Enabled && cfg.CRM.WebhookURL == "" {
		add("crm enabled without webhook_url")
	}
	if cfg.Export.Enabled && cfg.Export.QueueURL == "" {
		add("export enabled without queue_url")
	}
	if (cfg.AWS.AccessKeyID == "") != (cfg.AWS.SecretAccessKey == "") {
		add("aws access_key_id and secret_access_key must be set together")
	}
	switch cfg.Analytics.Backend {
	case "memory":
	case "redis":
		if !cfg.Redis.Enabled() {
			add("analytics backend redis requires redis.url")
		}
	default:
		add("unknown analytics backend %q", cfg.Analytics.Backend)
	}
	policies := map[string]string{
		"captcha":      cfg.Policy.Captcha,
		"rate_limit":   cfg.Policy.RateLimit,
		"dedup":        cfg.Policy.Dedup,
		"mx":           cfg.Policy.MX,
		"verification": cfg.Policy.Verification,
	}
	for name, v := range policies {
		if v != "open" && v != "closed" {
			add("policy.%s must be open or closed, got %q", name, v)
		}
	}
	if cfg.Risk.WarnScore >= cfg.Risk.RejectScore {
		add("risk.warn_score must be below risk.reject_score")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}
