package remotefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndpointConfig_NormalizeAppliesDefaults(t *testing.T) {
	cfg := EndpointConfig{Host: "  example.com  ", User: " u ", Password: "p"}.Normalize()

	require.Equal(t, "example.com", cfg.Host)
	require.Equal(t, "u", cfg.User)
	require.Equal(t, 22, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.DialTimeout)
	require.Equal(t, "example.com", cfg.Name, "name falls back to the host")
}

func TestEndpointConfig_NormalizeKeepsExplicitValues(t *testing.T) {
	cfg := EndpointConfig{
		Name:        "archive",
		Host:        "example.com",
		Port:        2022,
		User:        "u",
		Password:    "p",
		DialTimeout: time.Second,
	}.Normalize()

	require.Equal(t, "archive", cfg.Name)
	require.Equal(t, 2022, cfg.Port)
	require.Equal(t, time.Second, cfg.DialTimeout)
}

func TestEndpointConfig_Validate(t *testing.T) {
	valid := EndpointConfig{Host: "example.com", Port: 22, User: "u", Password: "p"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		cfg  EndpointConfig
	}{
		{"missing host", EndpointConfig{Port: 22, User: "u", Password: "p"}},
		{"missing user", EndpointConfig{Host: "example.com", Port: 22, Password: "p"}},
		{"missing password", EndpointConfig{Host: "example.com", Port: 22, User: "u"}},
		{"port too large", EndpointConfig{Host: "example.com", Port: 70000, User: "u", Password: "p"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.cfg.Validate())
		})
	}
}

func TestEndpointConfig_Addr(t *testing.T) {
	cfg := EndpointConfig{Host: "example.com", Port: 22}
	require.Equal(t, "example.com:22", cfg.Addr())

	cfg = EndpointConfig{Host: "::1", Port: 2022}
	require.Equal(t, "[::1]:2022", cfg.Addr())
}
