package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/filebridge/pkg/crypto"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords
// alike, so callers cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Account is one configured gateway principal. Passwords are stored as
// bcrypt hashes in the configuration.
type Account struct {
	Name         string
	PasswordHash string
	Scope        []string
}

// Authenticator verifies static gateway accounts from the configuration.
type Authenticator struct {
	accounts map[string]Account
}

// NewAuthenticator validates the configured accounts and builds a lookup.
func NewAuthenticator(accounts []Account) (*Authenticator, error) {
	lookup := make(map[string]Account, len(accounts))
	for _, account := range accounts {
		name := strings.TrimSpace(account.Name)
		if name == "" {
			return nil, errors.New("auth: account name is required")
		}
		if strings.TrimSpace(account.PasswordHash) == "" {
			return nil, fmt.Errorf("auth: account %q has no password hash", name)
		}
		if _, exists := lookup[name]; exists {
			return nil, fmt.Errorf("auth: duplicate account %q", name)
		}
		account.Name = name
		lookup[name] = account
	}

	return &Authenticator{accounts: lookup}, nil
}

// Verify checks the supplied credentials and returns the matching account.
func (a *Authenticator) Verify(name, password string) (Account, error) {
	if a == nil {
		return Account{}, ErrInvalidCredentials
	}

	account, ok := a.accounts[strings.TrimSpace(name)]
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if !crypto.VerifyPassword(account.PasswordHash, password) {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Empty reports whether no accounts are configured.
func (a *Authenticator) Empty() bool {
	return a == nil || len(a.accounts) == 0
}
