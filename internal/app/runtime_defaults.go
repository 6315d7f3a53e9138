package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/filebridge/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults populates the JWT secret when accounts are configured
// but no secret was supplied, so a config file can enable authentication
// without inventing key material. It returns a map describing which keys were
// generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if cfg.Auth.Enabled() && strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	return generated, nil
}
