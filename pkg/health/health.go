// Package health runs liveness and readiness checks and exposes them over
// HTTP and the gRPC health protocol.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Check is a single probe that succeeds or fails.
type Check interface {
	Name() string
	// Check returns nil when healthy.
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc wraps fn as a named Check.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the check name.
func (c *CheckFunc) Name() string { return c.name }

// Check runs the wrapped function.
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// Result is the outcome of one check execution.
type Result struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Status aggregates the results of a probe.
type Status struct {
	Healthy bool
	Checks  []Result
}

// Checker holds liveness and readiness checks. A failing check only turns
// unhealthy after failureThreshold consecutive failures.
type Checker struct {
	mu               sync.Mutex
	liveness         []Check
	readiness        []Check
	timeout          time.Duration
	failureThreshold int
	failures         map[string]int
	log              logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each individual check. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFailureThreshold sets the consecutive failures needed before a check
// reports unhealthy. Default 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithLogger sets the logger used for check outcomes.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
		failures:         make(map[string]int),
		log:              logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLivenessCheck registers a check deciding whether the process should be restarted.
func (c *Checker) AddLivenessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, check)
}

// AddReadinessCheck registers a check deciding whether the service can take traffic.
func (c *Checker) AddReadinessCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, check)
}

// CheckLiveness runs the liveness checks.
func (c *Checker) CheckLiveness(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.liveness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

// CheckReadiness runs the readiness checks.
func (c *Checker) CheckReadiness(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.readiness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

// CheckAll runs liveness and readiness checks together.
func (c *Checker) CheckAll(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	checks := append(append([]Check(nil), c.liveness...), c.readiness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

func (c *Checker) run(ctx context.Context, checks []Check) (*Status, error) {
	status := &Status{Healthy: true, Checks: make([]Result, len(checks))}
	if len(checks) == 0 {
		return status, nil
	}

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			status.Checks[i] = c.execute(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	var result error
	for _, r := range status.Checks {
		if !r.Healthy {
			status.Healthy = false
			result = multierror.Append(result, fmt.Errorf("%s: %s", r.Name, r.Error))
		}
	}
	sort.Slice(status.Checks, func(i, j int) bool { return status.Checks[i].Name < status.Checks[j].Name })

	return status, result
}

func (c *Checker) execute(parent context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	res := Result{Name: check.Name(), Healthy: true, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures[res.Name] = 0
		c.log.Debug("Health check passed",
			logger.StringField("check", res.Name),
			logger.DurationField("latency", res.Latency))
		return res
	}

	c.failures[res.Name]++
	failures := c.failures[res.Name]
	if failures < c.failureThreshold {
		c.log.Debug("Health check failed below threshold",
			logger.StringField("check", res.Name),
			logger.ErrorField(err),
			logger.IntField("failures", failures),
			logger.IntField("threshold", c.failureThreshold))
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.log.Warn("Health check failed",
		logger.StringField("check", res.Name),
		logger.ErrorField(err),
		logger.IntField("failures", failures),
		logger.DurationField("latency", res.Latency))
	return res
}
