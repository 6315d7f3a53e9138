package app

import (
	"github.com/charlesng35/filebridge/internal/auth"
)

// Enabled reports whether the gateway should require authentication. Without
// configured accounts the API runs open.
func (c AuthConfig) Enabled() bool {
	return len(c.Accounts) > 0
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// AccountList converts the configured accounts into the auth package representation.
func (c AuthConfig) AccountList() []auth.Account {
	accounts := make([]auth.Account, 0, len(c.Accounts))
	for _, account := range c.Accounts {
		accounts = append(accounts, auth.Account{
			Name:         account.Name,
			PasswordHash: account.PasswordHash,
			Scope:        account.Scope,
		})
	}
	return accounts
}
