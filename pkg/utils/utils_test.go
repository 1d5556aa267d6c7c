package utils

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

func TestMergeErrorChans(t *testing.T) {
	ch1 := make(chan error, 1)
	ch2 := make(chan error, 1)
	merged := MergeErrorChans(ch1, nil, ch2)

	ch1 <- errors.New("http")
	ch2 <- errors.New("metrics")
	close(ch1)
	close(ch2)

	var got []string
	for err := range merged {
		got = append(got, err.Error())
	}
	assert.ElementsMatch(t, []string{"http", "metrics"}, got)
}

func TestMergeErrorChansEmpty(t *testing.T) {
	select {
	case _, ok := <-MergeErrorChans():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("merged channel was not closed")
	}
}

func TestServeGRPC(t *testing.T) {
	s := grpc.NewServer()
	errs, addr, err := ServeGRPC(s, 0, logger.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", portOf(t, addr)))
	require.NoError(t, err)
	_ = conn.Close()

	s.Stop()
	select {
	case <-errs:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after Stop")
	}
}

func portOf(t *testing.T, addr net.Addr) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	return port
}
