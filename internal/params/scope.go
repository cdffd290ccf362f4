package params

import (
	"fmt"
	"strings"
)

// Scope is a bit set describing when a key is cleared and how it is treated.
type Scope uint8

// Scope bits.
const (
	// Persistent keys are never cleared by the manager.
	Persistent Scope = 1 << iota

	// ClearOnManagerStart keys are removed during bootstrap.
	ClearOnManagerStart

	// ClearOnOnroadTransition keys are removed when the vehicle goes onroad.
	ClearOnOnroadTransition

	// ClearOnOffroadTransition keys are removed when the vehicle goes offroad.
	ClearOnOffroadTransition

	// DevelopmentOnly keys are removed on every start of a release build.
	DevelopmentOnly

	// DontLog values are redacted from logs and the status API.
	DontLog
)

var scopeNames = []struct {
	scope Scope
	name  string
}{
	{Persistent, "persistent"},
	{ClearOnManagerStart, "clear_on_manager_start"},
	{ClearOnOnroadTransition, "clear_on_onroad_transition"},
	{ClearOnOffroadTransition, "clear_on_offroad_transition"},
	{DevelopmentOnly, "development_only"},
	{DontLog, "dont_log"},
}

// Has reports whether s shares any bit with other.
func (s Scope) Has(other Scope) bool {
	return s&other != 0
}

// String returns the scope names joined with "|".
func (s Scope) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, sn := range scopeNames {
		if s.Has(sn.scope) {
			parts = append(parts, sn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseScope converts a scope name as written in the key table.
func ParseScope(name string) (Scope, error) {
	for _, sn := range scopeNames {
		if sn.name == name {
			return sn.scope, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScope, name)
}
