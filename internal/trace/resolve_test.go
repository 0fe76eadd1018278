package trace

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetResolver_Literal(t *testing.T) {
	r := NewNetResolver(DefaultConfig())
	r.ReverseTimeout = 500 * time.Millisecond

	dest, err := r.Resolve(context.Background(), " 127.0.0.1 ")
	require.NoError(t, err)

	assert.True(t, dest.IP.Equal(net.ParseIP("127.0.0.1")))
	assert.NotEmpty(t, dest.Name)
}

func TestNetResolver_Errors(t *testing.T) {
	v4 := DefaultConfig()
	v4.IPv4 = true
	v6 := DefaultConfig()
	v6.IPv6 = true

	tests := []struct {
		name   string
		config *Config
		target string
	}{
		{"empty target", DefaultConfig(), ""},
		{"blank target", DefaultConfig(), "   "},
		{"IPv6 literal with IPv4 forced", v4, "2001:db8::1"},
		{"IPv4 literal with IPv6 forced", v6, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNetResolver(tt.config).Resolve(context.Background(), tt.target)
			require.Error(t, err)

			var re *ResolutionError
			assert.True(t, errors.As(err, &re))
			assert.ErrorIs(t, err, ErrTargetResolution)
		})
	}
}

func TestNetResolver_UnknownHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping: performs a DNS lookup")
	}

	_, err := NewNetResolver(DefaultConfig()).Resolve(context.Background(), "this.hostname.does.not.exist.invalid")
	assert.ErrorIs(t, err, ErrTargetResolution)
}

func TestResolutionError(t *testing.T) {
	inner := errors.New("no such host")
	err := &ResolutionError{Target: "example.invalid", Err: inner}

	assert.Contains(t, err.Error(), "example.invalid")
	assert.ErrorIs(t, err, inner)
	assert.ErrorIs(t, err, ErrTargetResolution)
}

func TestDestination_String(t *testing.T) {
	ip := net.ParseIP("192.0.2.1")

	assert.Equal(t, "192.0.2.1", Destination{IP: ip}.String())
	assert.Equal(t, "192.0.2.1", Destination{IP: ip, Name: "192.0.2.1"}.String())
	assert.Equal(t, "192.0.2.1 (host.test)", Destination{IP: ip, Name: "host.test"}.String())
}
