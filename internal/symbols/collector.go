package symbols

import (
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Applicability is the resolution status of a candidate.
type Applicability int

const (
	AmbiguousYet Applicability = iota // Not checked yet
	Applicable
	Inapplicable
)

func (a Applicability) String() string {
	switch a {
	case Applicable:
		return "applicable"
	case Inapplicable:
		return "inapplicable"
	default:
		return "unchecked"
	}
}

// Candidate is one declaration considered for a call.
type Candidate struct {
	Signature *Signature
	// Level is the tower level: lower levels are closer and win.
	Level  int
	Scope  ScopeKind
	Status Applicability
	Reason string // Why the candidate is inapplicable
}

// Collect gathers the declarations named name visible from table, innermost
// first. With a receiver only extension or member declarations qualify;
// without one only plain functions do. Consecutive scopes of the same
// non-local kind (two star imports, say) share one level.
//
// Collect has no side effects and returns fresh candidates on every call.
func Collect(receiver typesystem.Type, name string, table *SymbolTable) []Candidate {
	var out []Candidate
	level := -1
	var prev *SymbolTable
	for _, scope := range table.Chain() {
		if prev == nil || scope.scopeType != prev.scopeType || scope.scopeType == ScopeLocal {
			level++
		}
		prev = scope

		for _, sig := range scope.FindLocal(name) {
			if (receiver != nil) != (sig.Receiver != nil) {
				continue
			}
			out = append(out, Candidate{
				Signature: sig,
				Level:     level,
				Scope:     scope.scopeType,
				Status:    AmbiguousYet,
			})
		}
	}
	return out
}

// GroupByLevel splits candidates into tower levels in ascending order.
// Empty levels are skipped.
func GroupByLevel(cands []Candidate) [][]Candidate {
	var groups [][]Candidate
	last := -1
	for _, c := range cands {
		if len(groups) == 0 || c.Level != last {
			groups = append(groups, nil)
			last = c.Level
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], c)
	}
	return groups
}
