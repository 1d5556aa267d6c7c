package config

import (
	"fmt"
	"net/url"
	"time"
)

// WebhookConfig configures the n8n notifications. An empty N8NURL disables them.
type WebhookConfig struct {
	N8NURL  string        `env:"N8N_URL" yaml:"n8n_url"`
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" yaml:"timeout" default:"10s"`
}

func (w WebhookConfig) Validate() error {
	if w.N8NURL == "" {
		return nil
	}
	u, err := url.Parse(w.N8NURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("n8n url must be an http(s) url, got %q", w.N8NURL)
	}
	if w.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be greater than 0")
	}
	return nil
}
