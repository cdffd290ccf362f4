package registry

import (
	"slices"
	"strings"

	"github.com/nerrad567/onroad-manager/internal/identity"
	"github.com/nerrad567/onroad-manager/internal/params"
	"github.com/nerrad567/onroad-manager/internal/vehicle"
)

// IgnoreSet is the set of processes excluded for the whole run.
// It is built once at bootstrap and has no mutators.
type IgnoreSet struct {
	names map[string]struct{}
}

// NewIgnoreSet copies names into a new set. Empty names are dropped.
func NewIgnoreSet(names ...string) IgnoreSet {
	s := IgnoreSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n != "" {
			s.names[n] = struct{}{}
		}
	}
	return s
}

// Contains reports whether name is ignored.
func (s IgnoreSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Names returns the ignored names, sorted.
func (s IgnoreSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of ignored names.
func (s IgnoreSet) Len() int {
	return len(s.names)
}

// IgnoreInputs are the bootstrap facts the ignore set is built from.
type IgnoreInputs struct {
	// DongleID is the registered identity; empty or the unregistered
	// placeholder keeps cloud-facing processes off.
	DongleID string

	// NoBoard disables the panda interface.
	NoBoard bool

	// Block is a comma separated list of names to keep off.
	Block string
}

// BuildIgnoreSet derives the ignore set.
func BuildIgnoreSet(in IgnoreInputs) IgnoreSet {
	var names []string
	if in.DongleID == "" || in.DongleID == identity.UnregisteredDongleID {
		names = append(names, NameAthenad, NameUploader)
	}
	if in.NoBoard {
		names = append(names, NamePandad)
	}
	if in.Block != "" {
		for _, n := range strings.Split(in.Block, ",") {
			names = append(names, strings.TrimSpace(n))
		}
	}
	return NewIgnoreSet(names...)
}

// DesiredSet returns the names that should be running: enabled, wanted by
// their predicate and not ignored.
//
// Parameters:
//   - reg: Process registry
//   - started: Whether the vehicle is onroad
//   - state: Params view taken after this tick's scope clears
//   - v: Vehicle snapshot
//   - ignore: Bootstrap ignore set
//
// Returns:
//   - map[string]bool: Desired names; absent names are undesired
func DesiredSet(reg *Registry, started bool, state params.View, v vehicle.Snapshot, ignore IgnoreSet) map[string]bool {
	desired := make(map[string]bool, reg.Len())
	for _, d := range reg.procs {
		if !d.Enabled || ignore.Contains(d.Name) {
			continue
		}
		if d.Condition(started, state, v) {
			desired[d.Name] = true
		}
	}
	return desired
}
