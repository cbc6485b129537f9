package symbols

import (
	"sort"

	"github.com/funvibe/typeinfer/internal/typesystem"
)

// ScopeKind orders scopes by priority. Candidates from a closer scope kind
// shadow candidates from farther ones.
type ScopeKind int

const (
	ScopeLocal ScopeKind = iota
	ScopeMember
	ScopePackage
	ScopeExplicitImport
	ScopeStarImport
	ScopeDefaultImport
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeLocal:
		return "local"
	case ScopeMember:
		return "member"
	case ScopePackage:
		return "package"
	case ScopeExplicitImport:
		return "explicit import"
	case ScopeStarImport:
		return "star import"
	default:
		return "default import"
	}
}

// SymbolTable is one scope of function declarations linked to its outer
// scope. Lookups walk from the innermost table outwards.
type SymbolTable struct {
	store     map[string][]*Signature
	outer     *SymbolTable
	scopeType ScopeKind
	pkg       string // Package the scope's declarations come from
}

// NewSymbolTable creates a root table.
func NewSymbolTable(kind ScopeKind, pkg string) *SymbolTable {
	return &SymbolTable{
		store:     make(map[string][]*Signature),
		scopeType: kind,
		pkg:       pkg,
	}
}

// NewEnclosedSymbolTable creates a table nested inside outer.
func NewEnclosedSymbolTable(outer *SymbolTable, kind ScopeKind, pkg string) *SymbolTable {
	st := NewSymbolTable(kind, pkg)
	st.outer = outer
	return st
}

// Outer returns the enclosing table or nil.
func (s *SymbolTable) Outer() *SymbolTable {
	return s.outer
}

// Kind returns the scope kind of this table.
func (s *SymbolTable) Kind() ScopeKind {
	return s.scopeType
}

// Package returns the package of the scope.
func (s *SymbolTable) Package() string {
	return s.pkg
}

// Define adds a function declaration to this scope.
func (s *SymbolTable) Define(sig *Signature) {
	s.store[sig.Name] = append(s.store[sig.Name], sig)
}

// FindLocal returns the declarations named name in this scope only,
// ordered by signature id.
func (s *SymbolTable) FindLocal(name string) []*Signature {
	sigs := append([]*Signature(nil), s.store[name]...)
	sort.SliceStable(sigs, func(i, j int) bool {
		return sigs[i].ID() < sigs[j].ID()
	})
	return sigs
}

// Names returns the declared names of this scope in sorted order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.store))
	for n := range s.store {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain returns this table and all outer tables, innermost first.
func (s *SymbolTable) Chain() []*SymbolTable {
	var out []*SymbolTable
	for t := s; t != nil; t = t.outer {
		out = append(out, t)
	}
	return out
}

// LookupCandidates implements Lookup.
func (s *SymbolTable) LookupCandidates(receiver typesystem.Type, name string) []Candidate {
	return Collect(receiver, name, s)
}

// Lookup answers "which declarations named X are visible here, grouped by
// priority". Collect over a SymbolTable is the standard implementation.
type Lookup interface {
	LookupCandidates(receiver typesystem.Type, name string) []Candidate
}
