package auth

import (
	"fmt"
	"strings"
)

// Scope grammar: "action:resource". "admin:*" grants everything and
// short-circuits all other checks; "action:*" grants every resource under
// an action. There is no resource-level wildcard covering all actions:
// "*:devices" is not a recognised grant and never matches.
//
// Known actions: read, write, admin. Known resources: devices, sites,
// telemetry, commands, users, tokens. The grammar is open so new resources
// don't need a migration, but ParseScope rejects structural garbage.

// Scope is one parsed grant.
type Scope struct {
	Action   string
	Resource string
}

// String renders the scope back to its canonical "action:resource" form.
func (s Scope) String() string {
	return s.Action + ":" + s.Resource
}

// ScopeAdmin is the grant-everything scope.
const ScopeAdmin = "admin:*"

// ParseScope parses an "action:resource" string.
func ParseScope(raw string) (Scope, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Scope{}, fmt.Errorf("%w: malformed scope %q", ErrTokenInvalid, raw)
	}
	return Scope{Action: parts[0], Resource: parts[1]}, nil
}

// ScopeSet is the ordered list of grants carried by an API token.
type ScopeSet []string

// Allows reports whether the set grants the given action on the resource.
//
// A grant matches when it is admin:*, an exact action:resource match, or
// an action:* wildcard. Nothing else matches; in particular "*:resource"
// is deliberately not a grant.
func (ss ScopeSet) Allows(action, resource string) bool {
	for _, raw := range ss {
		s, err := ParseScope(raw)
		if err != nil {
			continue // unparseable grants never match
		}
		if s.Action == "admin" && s.Resource == "*" {
			return true
		}
		if s.Action != action {
			continue
		}
		if s.Resource == resource || s.Resource == "*" {
			return true
		}
	}
	return false
}

// Validate checks every scope in the set parses.
func (ss ScopeSet) Validate() error {
	for _, raw := range ss {
		if _, err := ParseScope(raw); err != nil {
			return err
		}
	}
	return nil
}
