// Package sym interns strings into stable 32-bit identifiers so that the
// rest of the engine can compare identities with integer equality instead
// of hashing or comparing strings on the hot path.
package sym

import "sync"

// Sym is an opaque handle to an interned string. The zero value is never
// returned by Interner.Intern; it is reserved to mean "no symbol".
type Sym uint32

// Interner assigns a stable Sym to every distinct string it sees. Symbols
// are never invalidated or reused for the lifetime of the process.
//
// The table is consulted from the debugger goroutine (for name lookups) as
// well as the mutator, so it is guarded by a mutex rather than left
// single-writer like the method area and heap.
type Interner struct {
	mu      sync.RWMutex
	bySym   []string
	byValue map[string]Sym
}

// New creates an empty Interner.
func New() *Interner {
	return &Interner{
		// index 0 is reserved so Sym's zero value never collides with a
		// real symbol.
		bySym:   []string{""},
		byValue: make(map[string]Sym),
	}
}

// Intern returns the Sym for s, assigning a fresh one on first sight.
func (in *Interner) Intern(s string) Sym {
	in.mu.RLock()
	if id, ok := in.byValue[s]; ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byValue[s]; ok {
		return id
	}
	id := Sym(len(in.bySym))
	in.bySym = append(in.bySym, s)
	in.byValue[s] = id
	return id
}

// Resolve returns the string behind a Sym. It panics on an unknown or zero
// Sym: every Sym in circulation must have come from Intern.
func (in *Interner) Resolve(s Sym) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if s == 0 || int(s) >= len(in.bySym) {
		panic("sym: resolve of unknown symbol")
	}
	return in.bySym[s]
}

// Len reports how many symbols (excluding the reserved zero) have been
// interned so far. Exposed for diagnostics and tests.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.bySym) - 1
}
