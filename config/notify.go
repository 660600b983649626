package config

import "time"

// AlertConfig contains the security alert webhook configuration.
// Alerts are disabled when WebhookURL is empty.
type AlertConfig struct {
	WebhookURL string        `env:"WEBHOOK_URL" envDefault:""`
	Username   string        `env:"USERNAME"    envDefault:"portal-api"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"2"`
}

// Enabled reports whether a webhook destination is configured.
func (a *AlertConfig) Enabled() bool { return a.WebhookURL != "" }

// Sanitize applies guardrails to alert configuration values.
func (a *AlertConfig) Sanitize() {
	if a.Timeout <= 0 {
		a.Timeout = 5 * time.Second
	}
	if a.RetryLimit < 0 {
		a.RetryLimit = 0
	}
}
