package app

import (
	"github.com/charlesng35/filebridge/internal/pool"
	"github.com/charlesng35/filebridge/internal/remotefs"
)

// Endpoints converts the configured sessions into the remotefs representation.
func (c *Config) Endpoints() []remotefs.EndpointConfig {
	endpoints := make([]remotefs.EndpointConfig, 0, len(c.Sessions))
	for _, session := range c.Sessions {
		endpoints = append(endpoints, remotefs.EndpointConfig{
			Name:        session.Name,
			Host:        session.Host,
			Port:        session.Port,
			User:        session.User,
			Password:    session.Password,
			DialTimeout: session.DialTimeout,
		})
	}
	return endpoints
}

// SupervisorConfig combines the session endpoints and pool tuning into the
// pool package representation.
func (c *Config) SupervisorConfig() pool.Config {
	return pool.Config{
		Endpoints:   c.Endpoints(),
		Backoff:     c.Pool.Backoff,
		MaxRestarts: c.Pool.MaxRestarts,
		StableAfter: c.Pool.StableAfter,
	}
}
