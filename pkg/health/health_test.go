package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheck struct {
	mu    sync.Mutex
	name  string
	err   error
	sleep time.Duration
}

func (s *stubCheck) Name() string { return s.name }

func (s *stubCheck) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubCheck) Check(ctx context.Context) error {
	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5*time.Second, c.timeout)
	assert.Equal(t, 3, c.failureThreshold)

	c = New(WithTimeout(time.Second), WithFailureThreshold(0))
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 3, c.failureThreshold, "non-positive threshold is ignored")
}

func TestNoChecksIsHealthy(t *testing.T) {
	status, err := New().CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestFailureThreshold(t *testing.T) {
	check := &stubCheck{name: "store", err: errors.New("down")}
	c := New(WithFailureThreshold(2))
	c.AddReadinessCheck(check)

	status, err := c.CheckReadiness(context.Background())
	require.NoError(t, err, "first failure is tolerated")
	assert.True(t, status.Healthy)

	status, err = c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, err.Error(), "store: down")

	check.setErr(nil)
	status, err = c.CheckReadiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	check.setErr(errors.New("down again"))
	_, err = c.CheckReadiness(context.Background())
	assert.NoError(t, err, "success resets the failure count")
}

func TestCheckTimeout(t *testing.T) {
	c := New(WithTimeout(20*time.Millisecond), WithFailureThreshold(1))
	c.AddLivenessCheck(&stubCheck{name: "slow", sleep: time.Second})

	start := time.Now()
	status, err := c.CheckLiveness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, status.Checks[0].Error, context.DeadlineExceeded.Error())
}

func TestCheckAllCombinesAndSorts(t *testing.T) {
	c := New(WithFailureThreshold(1))
	c.AddLivenessCheck(NewCheckFunc("process", func(context.Context) error { return nil }))
	c.AddReadinessCheck(&stubCheck{name: "gateway", err: errors.New("503")})
	c.AddReadinessCheck(&stubCheck{name: "credentials"})

	status, err := c.CheckAll(context.Background())
	require.Error(t, err)
	require.Len(t, status.Checks, 3)
	assert.Equal(t, "credentials", status.Checks[0].Name)
	assert.Equal(t, "gateway", status.Checks[1].Name)
	assert.False(t, status.Checks[1].Healthy)
	assert.Equal(t, "process", status.Checks[2].Name)
}
