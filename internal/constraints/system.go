// Package constraints stores the type variables and bounds of one call
// instantiation. A System is owned by exactly one resolution attempt and is
// discarded together with it.
package constraints

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	set "github.com/hashicorp/go-set/v2"

	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Kind is the relation between a variable and its bound.
type Kind int

const (
	SubtypeOf   Kind = iota // Var <: Bound (upper bound)
	SupertypeOf             // Var :> Bound (lower bound)
	EqualTo                 // Var == Bound
)

func (k Kind) String() string {
	switch k {
	case SubtypeOf:
		return "<:"
	case SupertypeOf:
		return ":>"
	default:
		return "=="
	}
}

// Constraint is one bound on a variable.
type Constraint struct {
	Kind     Kind
	Var      typesystem.TVar
	Bound    typesystem.Type
	Position token.Position
	// Origin describes where the constraint came from ("argument #1", "expected type").
	Origin string
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %s", c.Var, c.Kind, c.Bound)
}

type variable struct {
	tv          typesystem.TVar
	constraints []Constraint
	fixed       typesystem.Type
}

// VariableIDs numbers type variables. Systems that share one never give two
// variables the same id. It is safe for concurrent use.
type VariableIDs struct {
	last atomic.Int64
}

func (ids *VariableIDs) next() int {
	return int(ids.last.Add(1))
}

// System is an arena of type variables with their constraints and results.
// It is not safe for concurrent use.
type System struct {
	ID       uuid.UUID
	vars     []*variable
	byID     map[int]*variable
	escaping *set.Set[int]
	ids      *VariableIDs
}

// NewSystem creates an empty constraint system drawing variable ids from
// ids. A nil ids gives the system its own numbering.
func NewSystem(ids *VariableIDs) *System {
	if ids == nil {
		ids = &VariableIDs{}
	}
	return &System{
		ID:       uuid.New(),
		byID:     make(map[int]*variable),
		escaping: set.New[int](0),
		ids:      ids,
	}
}

// NewVariable allocates a fresh variable owned by this system.
func (s *System) NewVariable(name string) typesystem.TVar {
	tv := typesystem.TVar{ID: s.ids.next(), Name: name}
	vr := &variable{tv: tv}
	s.vars = append(s.vars, vr)
	s.byID[tv.ID] = vr
	return tv
}

func (s *System) lookup(v typesystem.TVar) *variable {
	vr, ok := s.byID[v.ID]
	if !ok {
		panic(fmt.Sprintf("constraints: variable %s (#%d) does not belong to system %s", v, v.ID, s.ID))
	}
	return vr
}

// Owns reports whether v was allocated by this system.
func (s *System) Owns(v typesystem.TVar) bool {
	_, ok := s.byID[v.ID]
	return ok
}

// MarkEscaping records that v flows out of the call (its return type).
// Escaping variables without constraints default to Any?.
func (s *System) MarkEscaping(v typesystem.TVar) {
	s.lookup(v)
	s.escaping.Insert(v.ID)
}

// Escapes reports whether v was marked escaping.
func (s *System) Escapes(v typesystem.TVar) bool {
	return s.escaping.Contains(v.ID)
}

// AddConstraint appends a bound to v. Constraints are only ever added,
// never removed. Adding to a fixed or foreign variable is a programming
// error and panics.
func (s *System) AddConstraint(v typesystem.TVar, kind Kind, bound typesystem.Type, pos token.Position, origin string) {
	vr := s.lookup(v)
	if vr.fixed != nil {
		panic(fmt.Sprintf("constraints: adding %s %s to fixed variable %s = %s", kind, bound, v, vr.fixed))
	}
	vr.constraints = append(vr.constraints, Constraint{
		Kind:     kind,
		Var:      v,
		Bound:    bound,
		Position: pos,
		Origin:   origin,
	})
}

// ConstraintsFor returns the constraints of v in insertion order.
func (s *System) ConstraintsFor(v typesystem.TVar) []Constraint {
	return s.lookup(v).constraints
}

// Variables returns all variables in allocation (ascending id) order.
func (s *System) Variables() []typesystem.TVar {
	out := make([]typesystem.TVar, len(s.vars))
	for i, vr := range s.vars {
		out[i] = vr.tv
	}
	return out
}

// Unfixed returns variables without a result, in allocation order.
func (s *System) Unfixed() []typesystem.TVar {
	var out []typesystem.TVar
	for _, vr := range s.vars {
		if vr.fixed == nil {
			out = append(out, vr.tv)
		}
	}
	return out
}

// Fix records the result of v. A result is immutable once set.
func (s *System) Fix(v typesystem.TVar, t typesystem.Type) {
	vr := s.lookup(v)
	if vr.fixed != nil {
		panic(fmt.Sprintf("constraints: variable %s already fixed to %s", v, vr.fixed))
	}
	if t == nil {
		panic(fmt.Sprintf("constraints: fixing %s to nil", v))
	}
	vr.fixed = t
}

// IsFixed reports whether v has a result.
func (s *System) IsFixed(v typesystem.TVar) bool {
	return s.lookup(v).fixed != nil
}

// Resolved returns the result of v.
func (s *System) Resolved(v typesystem.TVar) (typesystem.Type, bool) {
	vr := s.lookup(v)
	return vr.fixed, vr.fixed != nil
}

// Substitution maps every fixed variable to its result.
func (s *System) Substitution() typesystem.Subst {
	subst := make(typesystem.Subst)
	for _, vr := range s.vars {
		if vr.fixed != nil {
			subst[vr.tv.ID] = vr.fixed
		}
	}
	return subst
}

// ConstraintCount returns the total number of constraints in the system.
func (s *System) ConstraintCount() int {
	n := 0
	for _, vr := range s.vars {
		n += len(vr.constraints)
	}
	return n
}

// Len returns the number of variables.
func (s *System) Len() int {
	return len(s.vars)
}

// String renders the system for logs and internal error dumps.
func (s *System) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "system %s\n", s.ID)
	for _, vr := range s.vars {
		fmt.Fprintf(&sb, "  %s#%d", vr.tv, vr.tv.ID)
		if s.escaping.Contains(vr.tv.ID) {
			sb.WriteString(" (escaping)")
		}
		if vr.fixed != nil {
			fmt.Fprintf(&sb, " = %s", vr.fixed)
		}
		sb.WriteString("\n")
		for _, c := range vr.constraints {
			fmt.Fprintf(&sb, "    %s %s  [%s]\n", c.Kind, c.Bound, c.Origin)
		}
	}
	return sb.String()
}
