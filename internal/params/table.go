package params

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed table.yaml
var builtinTableYAML []byte

// Default is one entry of the default fill list.
type Default struct {
	Key   string
	Value []byte
}

// KeyTable is the static definition of every known key.
// A KeyTable is immutable once built and safe for concurrent use.
type KeyTable struct {
	scopes   map[string]Scope
	defaults []Default
}

type tableFile struct {
	Keys     map[string][]string `yaml:"keys"`
	Defaults []struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	} `yaml:"defaults"`
}

// NewKeyTable builds a table from explicit scopes and defaults.
// Keys that appear only in defaults are Persistent.
func NewKeyTable(scopes map[string]Scope, defaults []Default) *KeyTable {
	t := &KeyTable{
		scopes:   maps.Clone(scopes),
		defaults: make([]Default, len(defaults)),
	}
	if t.scopes == nil {
		t.scopes = make(map[string]Scope)
	}
	for i, d := range defaults {
		t.defaults[i] = Default{Key: d.Key, Value: slices.Clone(d.Value)}
		if _, ok := t.scopes[d.Key]; !ok {
			t.scopes[d.Key] = Persistent
		}
	}
	return t
}

// ParseKeyTable decodes a YAML key table.
//
// Parameters:
//   - data: YAML with a "keys" map of scope lists and an ordered "defaults" list
//
// Returns:
//   - *KeyTable: Parsed table
//   - error: ErrInvalidTable or ErrUnknownScope on malformed input
func ParseKeyTable(data []byte) (*KeyTable, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}

	scopes := make(map[string]Scope, len(f.Keys))
	for key, names := range f.Keys {
		var s Scope
		for _, name := range names {
			bit, err := ParseScope(name)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			s |= bit
		}
		if s == 0 {
			return nil, fmt.Errorf("%w: key %s has no scope", ErrInvalidTable, key)
		}
		scopes[key] = s
	}

	seen := make(map[string]bool, len(f.Defaults))
	defaults := make([]Default, 0, len(f.Defaults))
	for _, d := range f.Defaults {
		if d.Key == "" {
			return nil, fmt.Errorf("%w: default without key", ErrInvalidTable)
		}
		if seen[d.Key] {
			return nil, fmt.Errorf("%w: duplicate default %s", ErrInvalidTable, d.Key)
		}
		seen[d.Key] = true
		defaults = append(defaults, Default{Key: d.Key, Value: []byte(d.Value)})
	}

	return NewKeyTable(scopes, defaults), nil
}

var builtinTable = sync.OnceValues(func() (*KeyTable, error) {
	return ParseKeyTable(builtinTableYAML)
})

// BuiltinKeyTable returns the key table compiled into the binary.
func BuiltinKeyTable() (*KeyTable, error) {
	return builtinTable()
}

// Scope returns the scope of key.
func (t *KeyTable) Scope(key string) (Scope, bool) {
	s, ok := t.scopes[key]
	return s, ok
}

// Check returns ErrUnknownKey if key is not defined.
func (t *KeyTable) Check(key string) error {
	if _, ok := t.scopes[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Keys returns every defined key, sorted.
func (t *KeyTable) Keys() []string {
	return slices.Sorted(maps.Keys(t.scopes))
}

// KeysWith returns the sorted keys whose scope shares a bit with s.
func (t *KeyTable) KeysWith(s Scope) []string {
	var keys []string
	for key, scope := range t.scopes {
		if scope.Has(s) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Defaults returns a copy of the ordered default fill list.
func (t *KeyTable) Defaults() []Default {
	out := make([]Default, len(t.defaults))
	for i, d := range t.defaults {
		out[i] = Default{Key: d.Key, Value: slices.Clone(d.Value)}
	}
	return out
}
