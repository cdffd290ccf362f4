package params

import (
	"maps"
	"slices"
)

// View is an immutable point-in-time copy of a store's contents.
// Predicates read state through a View so they never touch the store.
type View struct {
	values map[string][]byte
}

// NewView copies values into a View.
func NewView(values map[string][]byte) View {
	v := View{values: make(map[string][]byte, len(values))}
	for k, b := range values {
		v.values[k] = slices.Clone(b)
	}
	return v
}

// Get returns the raw value and whether the key is set.
// The returned slice must not be modified.
func (v View) Get(key string) ([]byte, bool) {
	b, ok := v.values[key]
	return b, ok
}

// GetBool reports whether key is set to "1".
func (v View) GetBool(key string) bool {
	return decodeBool(v.values[key])
}

// String returns the value as a string, empty when unset.
func (v View) String(key string) string {
	return string(v.values[key])
}

// Len returns the number of set keys.
func (v View) Len() int {
	return len(v.values)
}

// Keys returns the set keys, sorted.
func (v View) Keys() []string {
	return slices.Sorted(maps.Keys(v.values))
}
