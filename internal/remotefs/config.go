package remotefs

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
)

// EndpointConfig identifies one remote SFTP endpoint and the credentials used
// to reach it. It is supplied once, at composition time, and never mutated.
type EndpointConfig struct {
	Name        string
	Host        string
	Port        int
	User        string
	Password    string
	DialTimeout time.Duration
}

// Normalize returns a copy with trimmed fields and defaults applied: port 22,
// a 10 second dial timeout, and the host standing in for a missing name.
func (c EndpointConfig) Normalize() EndpointConfig {
	c.Name = strings.TrimSpace(c.Name)
	c.Host = strings.TrimSpace(c.Host)
	c.User = strings.TrimSpace(c.User)

	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.Name == "" {
		c.Name = c.Host
	}
	return c
}

// Validate reports whether the configuration is complete enough to dial.
func (c EndpointConfig) Validate() error {
	if c.Host == "" {
		return errors.New("remotefs: host is required")
	}
	if c.User == "" {
		return errors.New("remotefs: user is required")
	}
	if c.Password == "" {
		return errors.New("remotefs: password is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("remotefs: invalid port %d", c.Port)
	}
	return nil
}

// Addr returns the host:port dial address for the endpoint.
func (c EndpointConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
