package params

import "context"

// Store is a key/value partition whose keys are restricted to a KeyTable.
//
// Values are raw bytes. Booleans are stored as "1" and "0"; any other
// value reads as false.
type Store interface {
	// Get returns the value and whether the key is set.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetBool reports whether the key is set to "1".
	GetBool(ctx context.Context, key string) (bool, error)

	// Put sets the value of key.
	Put(ctx context.Context, key string, value []byte) error

	// PutBool stores "1" or "0".
	PutBool(ctx context.Context, key string, value bool) error

	// Delete unsets key. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error

	// ClearAll unsets every key whose scope shares a bit with scope.
	ClearAll(ctx context.Context, scope Scope) error

	// Snapshot returns an immutable copy of the partition.
	Snapshot(ctx context.Context) (View, error)

	// Table returns the key table the store enforces.
	Table() *KeyTable
}

var (
	trueValue  = []byte("1")
	falseValue = []byte("0")
)

func encodeBool(v bool) []byte {
	if v {
		return trueValue
	}
	return falseValue
}

func decodeBool(b []byte) bool {
	return string(b) == "1"
}

// Redact returns value, or a placeholder when key is marked DontLog.
func Redact(t *KeyTable, key string, value []byte) string {
	if s, ok := t.Scope(key); ok && s.Has(DontLog) {
		return "<redacted>"
	}
	return string(value)
}
