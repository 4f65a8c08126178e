// Package intern provides a run-scoped string interner.
//
// Backends return many repeated strings (package names, owners, directory
// prefixes). An Interner is created once per run and passed explicitly to
// every collector; there is no process-wide instance, so tests can use
// independent interners.
package intern

import "sync"

// Symbol identifies an interned string within one Interner.
type Symbol uint32

// Interner maps strings to compact symbols and back.
// It is safe for concurrent use by backend collectors.
type Interner struct {
	mu      sync.RWMutex
	strings []string
	index   map[string]Symbol
}

// New creates an empty Interner.
func New() *Interner {
	return &Interner{
		index: make(map[string]Symbol),
	}
}

// Intern returns the symbol for s, allocating one if needed.
func (in *Interner) Intern(s string) Symbol {
	in.mu.RLock()
	sym, ok := in.index[s]
	in.mu.RUnlock()
	if ok {
		return sym
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if sym, ok := in.index[s]; ok {
		return sym
	}
	sym = Symbol(len(in.strings))
	in.strings = append(in.strings, s)
	in.index[s] = sym
	return sym
}

// Lookup returns the string for sym. It panics if sym was not produced by
// this interner.
func (in *Interner) Lookup(sym Symbol) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.strings[sym]
}

// Len returns the number of distinct strings interned.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.strings)
}
