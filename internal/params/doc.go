// Package params is the shared key/value state read by managed processes
// and written by the manager.
//
// Every key is defined in a KeyTable with a Scope bit set that decides when
// the manager clears it. The built-in table is compiled from table.yaml.
//
// Four partitions share the same table:
//   - primary: the live SQLite file every process reads
//   - storage: a SQLite shadow of user toggles on the persist volume
//   - tracking: a SQLite shadow of drive statistics on the persist volume
//   - memory: the in-process MemoryStore for hot signals, lost on restart
//
// Predicates never read a Store directly. The manager takes a View after
// the edge clears of a tick and hands it to every predicate.
package params
