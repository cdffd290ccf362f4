package registry

import "fmt"

// Registry is the ordered, immutable set of managed processes.
type Registry struct {
	procs []Descriptor
	index map[string]int
}

// New builds a registry, keeping the given order.
//
// Parameters:
//   - procs: Process descriptors in publication order
//
// Returns:
//   - *Registry: Immutable registry
//   - error: ErrEmptyName, ErrDuplicateName, ErrNoCondition or ErrInvalidKind
func New(procs ...Descriptor) (*Registry, error) {
	r := &Registry{
		procs: make([]Descriptor, 0, len(procs)),
		index: make(map[string]int, len(procs)),
	}
	for _, d := range procs {
		if d.Name == "" {
			return nil, ErrEmptyName
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
		if d.Condition == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoCondition, d.Name)
		}
		switch d.Kind {
		case KindNative, KindInterpreted, KindDaemon:
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidKind, d.Name)
		}
		r.index[d.Name] = len(r.procs)
		r.procs = append(r.procs, d)
	}
	return r, nil
}

// All returns the descriptors in registry order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.procs))
	copy(out, r.procs)
	return out
}

// Lookup returns the descriptor with the given name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.procs[i], true
}

// Names returns process names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.procs))
	for i, d := range r.procs {
		out[i] = d.Name
	}
	return out
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.procs)
}
