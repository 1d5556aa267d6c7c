package config

import (
	"fmt"
	"net/url"
	"time"
)

// GatewayConfig points at the WhatsApp protocol gateway.
type GatewayConfig struct {
	URL              string        `env:"GATEWAY_URL" yaml:"url" default:"ws://localhost:3001"`
	Token            string        `env:"GATEWAY_TOKEN" yaml:"token"`
	KeepAlive        time.Duration `env:"GATEWAY_KEEPALIVE" yaml:"keepalive" default:"15s"`
	HandshakeTimeout time.Duration `env:"GATEWAY_HANDSHAKE_TIMEOUT" yaml:"handshake_timeout" default:"10s"`
	Browser          []string      `env:"GATEWAY_BROWSER" yaml:"browser" default:"Phonova,Chrome,4.0.0"`
	// HealthURL is probed by the readiness check when set.
	HealthURL string `env:"GATEWAY_HEALTH_URL" yaml:"health_url"`
}

func (g GatewayConfig) Validate() error {
	u, err := url.Parse(g.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("gateway url must be a ws:// or wss:// url, got %q", g.URL)
	}
	if g.KeepAlive <= 0 {
		return fmt.Errorf("gateway keepalive must be greater than 0")
	}
	if len(g.Browser) != 3 {
		return fmt.Errorf("gateway browser must have 3 comma separated parts, got %d", len(g.Browser))
	}
	return nil
}
