// Package solver computes a substitution for the variables of a constraint
// system by repeated incorporation and fixation until nothing changes.
package solver

import (
	"log"
	"sort"

	set "github.com/hashicorp/go-set/v2"

	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Options tune the solver.
type Options struct {
	// StrictEmptyIntersection turns empty intersections into errors.
	StrictEmptyIntersection bool
	// IterationBudget bounds the number of solver steps per system.
	IterationBudget int
	// Logger receives cycle breaking and internal error traces. May be nil.
	Logger *log.Logger
}

// Solver fixes the variables of constraint systems. It holds no per-system
// state and may be shared between goroutines.
type Solver struct {
	Table    *typesystem.ClassTable
	Options  Options
	injector *Injector
}

// New creates a solver over the given class table.
func New(table *typesystem.ClassTable, opts Options) *Solver {
	if opts.IterationBudget <= 0 {
		opts.IterationBudget = config.DefaultIterationBudget
	}
	return &Solver{Table: table, Options: opts, injector: &Injector{Table: table}}
}

// Injector returns the injector bound to the solver's class table.
func (s *Solver) Injector() *Injector {
	return s.injector
}

// EmptyIntersection records a variable fixed to an intersection with no values.
type EmptyIntersection struct {
	Var      typesystem.TVar
	Type     typesystem.Type
	Position token.Position
}

// Solution is the outcome of solving one system.
type Solution struct {
	Substitution typesystem.Subst
	// Unresolved lists variables that had no constraints and do not escape.
	Unresolved []typesystem.TVar
	// EmptyIntersections are reported as warnings by the caller.
	EmptyIntersections []EmptyIntersection
}

// Apply substitutes fixed variables in t.
func (sol *Solution) Apply(t typesystem.Type) typesystem.Type {
	return t.Apply(sol.Substitution)
}

// TypeOf returns the result of v.
func (sol *Solution) TypeOf(v typesystem.TVar) (typesystem.Type, bool) {
	t, ok := sol.Substitution[v.ID]
	return t, ok
}

// bounds is a snapshot of one variable's constraints read through the
// current substitution.
type bounds struct {
	lower []constraints.Constraint
	upper []constraints.Constraint
	equal []constraints.Constraint
}

func (b *bounds) empty() bool {
	return len(b.lower) == 0 && len(b.upper) == 0 && len(b.equal) == 0
}

func (b *bounds) all() []constraints.Constraint {
	out := make([]constraints.Constraint, 0, len(b.lower)+len(b.upper)+len(b.equal))
	out = append(out, b.equal...)
	out = append(out, b.lower...)
	return append(out, b.upper...)
}

func (b *bounds) closed() bool {
	for _, c := range b.all() {
		if !typesystem.IsClosed(c.Bound) {
			return false
		}
	}
	return true
}

type solveState struct {
	sys        *constraints.System
	seen       *set.Set[string]
	unresolved *set.Set[int]
	sol        *Solution
}

// Solve fixes every variable of sys that can be fixed. Solving an already
// solved system yields the same substitution.
func (s *Solver) Solve(sys *constraints.System) (*Solution, error) {
	st := &solveState{
		sys:        sys,
		seen:       set.New[string](0),
		unresolved: set.New[int](0),
		sol:        &Solution{},
	}

	for iter := 0; ; iter++ {
		if iter >= s.Options.IterationBudget {
			err := newInternalError(sys, s.snapshot(sys), "solver: iteration budget %d exhausted for system %s", s.Options.IterationBudget, sys.ID)
			if s.Options.Logger != nil {
				s.Options.Logger.Printf("%+v", err)
			}
			return nil, err
		}
		progress, err := s.step(st)
		if err != nil {
			return nil, err
		}
		if !progress {
			break
		}
	}

	if err := s.verify(sys); err != nil {
		return nil, err
	}

	st.sol.Substitution = sys.Substitution()
	st.sol.Unresolved = sys.Unfixed()
	return st.sol, nil
}

// step performs one unit of work: an incorporation round that added
// constraints, or the fixation of one variable or one cycle.
func (s *Solver) step(st *solveState) (bool, error) {
	added, err := s.incorporate(st)
	if err != nil || added {
		return added, err
	}

	var pending []typesystem.TVar
	for _, v := range st.sys.Unfixed() {
		if !st.unresolved.Contains(v.ID) {
			pending = append(pending, v)
		}
	}
	if len(pending) == 0 {
		return false, nil
	}

	subst := st.sys.Substitution()
	all := make(map[int]*bounds, len(pending))
	mentioned := set.New[int](0)
	for _, v := range pending {
		b := s.boundsOf(st.sys, v, subst)
		all[v.ID] = b
		for _, c := range b.all() {
			for _, fv := range c.Bound.FreeTypeVariables() {
				if fv.ID != v.ID {
					mentioned.Insert(fv.ID)
				}
			}
		}
	}

	for _, v := range pending {
		b := all[v.ID]
		if b.empty() {
			switch {
			case st.sys.Escapes(v) || mentioned.Contains(v.ID):
				st.sys.Fix(v, typesystem.NullableAny())
			default:
				st.unresolved.Insert(v.ID)
			}
			return true, nil
		}
		if b.closed() {
			return true, s.fix(st, v, b)
		}
	}

	graph := make(dependencyGraph, len(pending))
	for _, v := range pending {
		deps := set.New[int](0)
		for _, c := range all[v.ID].all() {
			for _, fv := range c.Bound.FreeTypeVariables() {
				if fv.ID != v.ID && st.sys.Owns(fv) && !st.unresolved.Contains(fv.ID) {
					deps.Insert(fv.ID)
				}
			}
		}
		graph[v.ID] = deps.Slice()
	}
	comps := graph.components()
	byID := make(map[int]typesystem.TVar, len(pending))
	for _, v := range pending {
		byID[v.ID] = v
	}
	members := make([]typesystem.TVar, 0, len(comps[0]))
	for _, id := range comps[0] {
		members = append(members, byID[id])
	}
	return true, s.fixCycle(st, members, all)
}

func (s *Solver) boundsOf(sys *constraints.System, v typesystem.TVar, subst typesystem.Subst) *bounds {
	b := &bounds{}
	for _, c := range sys.ConstraintsFor(v) {
		c.Bound = c.Bound.Apply(subst)
		switch c.Kind {
		case constraints.SubtypeOf:
			b.upper = append(b.upper, c)
		case constraints.SupertypeOf:
			b.lower = append(b.lower, c)
		default:
			b.equal = append(b.equal, c)
		}
	}
	return b
}

// incorporate injects lower <: upper for every pair of bounds of every
// unfixed variable. This propagates bounds across variable-to-variable
// constraints and reports contradictions between closed bounds.
func (s *Solver) incorporate(st *solveState) (bool, error) {
	before := st.sys.ConstraintCount()
	subst := st.sys.Substitution()

	for _, v := range st.sys.Unfixed() {
		b := s.boundsOf(st.sys, v, subst)
		lowers := append(append([]constraints.Constraint(nil), b.equal...), b.lower...)
		uppers := append(append([]constraints.Constraint(nil), b.equal...), b.upper...)
		for _, lo := range lowers {
			for _, up := range uppers {
				key := typesystem.Key(lo.Bound) + " <: " + typesystem.Key(up.Bound)
				if !st.seen.Insert(key) {
					continue
				}
				if err := s.injector.Subtype(st.sys, lo.Bound, up.Bound, lo.Position, lo.Origin); err != nil {
					pos := lo.Position
					if !pos.IsValid() {
						pos = up.Position
					}
					return false, &Contradiction{Var: v, Lower: lo.Bound, Upper: up.Bound, Position: pos}
				}
			}
		}
	}
	return st.sys.ConstraintCount() > before, nil
}

// fix chooses the result of a variable whose bounds are all closed: the
// equal bound, else the common supertype of the lower bounds, else the
// intersection of the upper bounds.
func (s *Solver) fix(st *solveState, v typesystem.TVar, b *bounds) error {
	var result typesystem.Type
	switch {
	case len(b.equal) > 0:
		result = b.equal[0].Bound
	case len(b.lower) > 0:
		result = typesystem.CommonSupertype(s.Table, boundTypes(b.lower)...)
		if len(b.upper) > 0 && (typesystem.Equal(result, typesystem.Nothing()) || !s.fitsUppers(result, b.upper)) {
			glb, empty := typesystem.Intersect(s.Table, boundTypes(b.upper)...)
			if empty {
				if err := s.emptyIntersection(st, v, glb, b.upper[0].Position); err != nil {
					return err
				}
			}
			result = glb
		}
	default:
		glb, empty := typesystem.Intersect(s.Table, boundTypes(b.upper)...)
		if empty {
			if err := s.emptyIntersection(st, v, glb, b.upper[0].Position); err != nil {
				return err
			}
		}
		result = glb
	}
	st.sys.Fix(v, result)
	return nil
}

func (s *Solver) fitsUppers(t typesystem.Type, uppers []constraints.Constraint) bool {
	for _, u := range uppers {
		if !typesystem.IsSubtype(s.Table, t, u.Bound) {
			return false
		}
	}
	return true
}

// fixCycle fixes all members of a strongly connected component to the
// common supertype of their closed bounds.
func (s *Solver) fixCycle(st *solveState, members []typesystem.TVar, all map[int]*bounds) error {
	var lowers, uppers []typesystem.Type
	var pos token.Position
	for _, v := range members {
		b := all[v.ID]
		for _, c := range append(append([]constraints.Constraint(nil), b.equal...), b.lower...) {
			if typesystem.IsClosed(c.Bound) {
				lowers = append(lowers, c.Bound)
			}
		}
		for _, c := range b.upper {
			if typesystem.IsClosed(c.Bound) {
				uppers = append(uppers, c.Bound)
			}
		}
		if !pos.IsValid() {
			for _, c := range b.all() {
				if c.Position.IsValid() {
					pos = c.Position
					break
				}
			}
		}
	}

	var result typesystem.Type
	empty := false
	switch {
	case len(lowers) > 0:
		result = typesystem.CommonSupertype(s.Table, lowers...)
		empty = typesystem.Equal(result, typesystem.Nothing())
	case len(uppers) > 0:
		result, empty = typesystem.Intersect(s.Table, uppers...)
	default:
		result = typesystem.NullableAny()
	}

	if s.Options.Logger != nil {
		s.Options.Logger.Printf("solver: system %s: fixing cycle %v to %s", st.sys.ID, members, result)
	}
	if empty {
		if err := s.emptyIntersection(st, members[0], result, pos); err != nil {
			return err
		}
	}
	for _, v := range members {
		st.sys.Fix(v, result)
	}
	return nil
}

func (s *Solver) emptyIntersection(st *solveState, v typesystem.TVar, t typesystem.Type, pos token.Position) error {
	if s.Options.StrictEmptyIntersection {
		return &EmptyIntersectionError{Var: v, Type: t, Position: pos}
	}
	st.sol.EmptyIntersections = append(st.sol.EmptyIntersections, EmptyIntersection{Var: v, Type: t, Position: pos})
	return nil
}

// verify checks every closed constraint of every fixed variable against its
// result.
func (s *Solver) verify(sys *constraints.System) error {
	subst := sys.Substitution()
	for _, v := range sys.Variables() {
		result, ok := sys.Resolved(v)
		if !ok {
			continue
		}
		result = result.Apply(subst)
		for _, c := range sys.ConstraintsFor(v) {
			bound := c.Bound.Apply(subst)
			if !typesystem.IsClosed(bound) || !typesystem.IsClosed(result) {
				continue
			}
			switch c.Kind {
			case constraints.SubtypeOf:
				if !typesystem.IsSubtype(s.Table, result, bound) {
					return &Contradiction{Var: v, Lower: result, Upper: bound, Position: c.Position}
				}
			case constraints.SupertypeOf:
				if !typesystem.IsSubtype(s.Table, bound, result) {
					return &Contradiction{Var: v, Lower: bound, Upper: result, Position: c.Position}
				}
			default:
				if !typesystem.Equivalent(s.Table, result, bound) {
					return &Contradiction{Var: v, Lower: bound, Upper: result, Position: c.Position}
				}
			}
		}
	}
	return nil
}

func boundTypes(cs []constraints.Constraint) []typesystem.Type {
	out := make([]typesystem.Type, len(cs))
	for i, c := range cs {
		out[i] = c.Bound
	}
	return out
}

// snapshot is the solver state attached to internal errors.
func (s *Solver) snapshot(sys *constraints.System) map[string][]string {
	out := make(map[string][]string)
	subst := sys.Substitution()
	for _, v := range sys.Unfixed() {
		b := s.boundsOf(sys, v, subst)
		var lines []string
		for _, c := range b.all() {
			lines = append(lines, c.Kind.String()+" "+typesystem.Key(c.Bound))
		}
		sort.Strings(lines)
		out[typesystem.Key(v)] = lines
	}
	return out
}
