package clips

import "sync"

const (
	// SymbolTrue and SymbolFalse are the engine's boolean symbols.
	SymbolTrue  = "TRUE"
	SymbolFalse = "FALSE"
	// SymbolNil is what the host's null becomes.
	SymbolNil = "NULL"
)

// Atom is interned lexeme storage. Atoms are only created by Arena.Intern.
type Atom struct {
	text  string
	arena *Arena
}

func (a *Atom) String() string {
	if a == nil {
		return ""
	}
	return a.text
}

// Arena returns the arena that owns the atom.
func (a *Atom) Arena() *Arena {
	if a == nil {
		return nil
	}
	return a.arena
}

// Allocator is the engine's allocation capability. Every lexeme and
// multifield handed to the engine must come from one.
type Allocator interface {
	AddSymbol(text string) Symbol
	AddString(text string) String
	AddInstanceName(text string) InstanceName
	AddLong(n int64) Integer
	AddDouble(f float64) Float
	AddExternalAddress(ptr any) ExternalAddress
	CreateMultifield(n int) *Multifield
	TrueSymbol() Symbol
	FalseSymbol() Symbol
}

// Arena is the per-environment symbol table. Text is interned byte for byte;
// canonically equivalent spellings stay distinct atoms.
//
// Thread-safety: Arena is safe for concurrent use.
type Arena struct {
	mu    sync.Mutex
	atoms map[string]*Atom

	trueSym  Symbol
	falseSym Symbol
}

// NewArena creates an arena with TRUE and FALSE preinterned.
func NewArena() *Arena {
	a := &Arena{atoms: make(map[string]*Atom)}
	a.trueSym = Symbol{atom: a.Intern(SymbolTrue)}
	a.falseSym = Symbol{atom: a.Intern(SymbolFalse)}
	return a
}

// Intern returns the unique atom for text.
func (a *Arena) Intern(text string) *Atom {
	a.mu.Lock()
	defer a.mu.Unlock()

	if atom, ok := a.atoms[text]; ok {
		return atom
	}
	atom := &Atom{text: text, arena: a}
	a.atoms[text] = atom
	return atom
}

// Len returns the number of interned atoms.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.atoms)
}

// AddSymbol implements Allocator.
func (a *Arena) AddSymbol(text string) Symbol { return Symbol{atom: a.Intern(text)} }

// AddString implements Allocator.
func (a *Arena) AddString(text string) String { return String{atom: a.Intern(text)} }

// AddInstanceName implements Allocator. Surrounding brackets are removed.
func (a *Arena) AddInstanceName(text string) InstanceName {
	return InstanceName{atom: a.Intern(StripBrackets(text))}
}

// AddLong implements Allocator.
func (a *Arena) AddLong(n int64) Integer { return Integer(n) }

// AddDouble implements Allocator.
func (a *Arena) AddDouble(f float64) Float { return Float(f) }

// AddExternalAddress implements Allocator.
func (a *Arena) AddExternalAddress(ptr any) ExternalAddress { return ExternalAddress{ptr: ptr} }

// CreateMultifield implements Allocator.
func (a *Arena) CreateMultifield(n int) *Multifield {
	if n < 0 {
		n = 0
	}
	return &Multifield{fields: make([]Value, n), arena: a}
}

// TrueSymbol implements Allocator.
func (a *Arena) TrueSymbol() Symbol { return a.trueSym }

// FalseSymbol implements Allocator.
func (a *Arena) FalseSymbol() Symbol { return a.falseSym }

// Bool returns TRUE or FALSE.
func (a *Arena) Bool(b bool) Symbol {
	if b {
		return a.trueSym
	}
	return a.falseSym
}
