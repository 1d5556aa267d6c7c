package checkers

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *pgxpool.Pool and anything else with a context-aware Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker wraps a Pinger such as the Postgres pool.
type PingChecker struct {
	pinger Pinger
	name   string
}

// NewPingChecker creates a checker. An empty name defaults to "postgres".
func NewPingChecker(p Pinger, name string) *PingChecker {
	if name == "" {
		name = "postgres"
	}
	return &PingChecker{pinger: p, name: name}
}

// Name returns the check name.
func (p *PingChecker) Name() string { return p.name }

// Check pings the backend.
func (p *PingChecker) Check(ctx context.Context) error {
	if err := p.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
