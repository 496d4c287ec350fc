package natsutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"wrapped no servers", fmt.Errorf("get claim: %w", nats.ErrNoServers), true},
		{"deadline", context.DeadlineExceeded, true},
		{"network timeout", &net.DNSError{Err: "lookup", IsTimeout: true}, true},
		{"closed conn", fmt.Errorf("redis: %w", net.ErrClosed), true},
		{"no responders", nats.ErrNoResponders, true},
		{"refused text", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("invalid claim record"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}
