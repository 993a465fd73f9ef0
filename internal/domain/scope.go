package domain

import (
	"strings"

	"github.com/channelbriefapp/channelbrief-engine/internal/errors"
)

// Scope namespaces every cached record under a single signed-in user. All
// repository operations resolve keys through the scope so that switching
// accounts can never leak one user's videos into another's view.
type Scope string

// ParseScope validates a raw user identifier and returns it as a Scope.
// Identifiers must be non-empty after trimming and must not contain the
// key separator, since scopes are embedded verbatim in storage keys.
func ParseScope(raw string) (Scope, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.InvalidScope("scope must not be empty")
	}
	if strings.ContainsAny(trimmed, ":\n") {
		return "", errors.InvalidScope("scope contains reserved characters")
	}
	return Scope(trimmed), nil
}

func (s Scope) String() string {
	return string(s)
}
