package app

import (
	"strings"

	"github.com/charlesng35/filebridge/internal/database"
)

// ConnectionConfig converts the application database configuration into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	return database.Config{
		Driver:   strings.TrimSpace(c.Driver),
		Path:     strings.TrimSpace(c.Path),
		DSN:      strings.TrimSpace(c.DSN),
		Host:     strings.TrimSpace(c.Host),
		Port:     c.Port,
		User:     strings.TrimSpace(c.Username),
		Password: c.Password,
		Name:     strings.TrimSpace(c.Name),
	}
}
