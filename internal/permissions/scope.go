package permissions

import "strings"

// Scopes understood by the gateway API. Tokens carry a list of granted
// scopes; routes declare the scope they require.
const (
	ScopeSessionsRead = "sessions:read"
	ScopeFilesRead    = "files:read"
	ScopeFilesStream  = "files:stream"
)

// Allows reports whether the granted scopes cover the required one. A bare
// "*" grants everything, and a trailing wildcard such as "files:*" grants
// every scope under that prefix.
func Allows(granted []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return true
	}
	for _, scope := range granted {
		if covers(scope, required) {
			return true
		}
	}
	return false
}

func covers(granted, required string) bool {
	granted = strings.TrimSpace(granted)
	switch {
	case granted == "":
		return false
	case granted == "*" || granted == required:
		return true
	case strings.HasSuffix(granted, ":*"):
		return strings.HasPrefix(required, granted[:len(granted)-1])
	default:
		return false
	}
}
