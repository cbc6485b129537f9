package solver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

func parse(t *testing.T, text string) typesystem.Type {
	t.Helper()
	typ, err := typesystem.ParseType(text, nil)
	if err != nil {
		t.Fatalf("ParseType(%q): %v", text, err)
	}
	return typ
}

func at(line int) token.Position {
	return token.Position{File: "t.yaml", Line: line, Column: 1}
}

type fixture struct {
	t      *testing.T
	table  *typesystem.ClassTable
	solver *Solver
	sys    *constraints.System
}

func newFixture(t *testing.T, opts Options) *fixture {
	table := typesystem.NewClassTable()
	return &fixture{t: t, table: table, solver: New(table, opts), sys: constraints.NewSystem(nil)}
}

func (f *fixture) subtype(a, b typesystem.Type) {
	f.t.Helper()
	if err := f.solver.Injector().Subtype(f.sys, a, b, at(1), "test"); err != nil {
		f.t.Fatalf("Subtype(%s, %s): %v", a, b, err)
	}
}

func (f *fixture) solve() *Solution {
	f.t.Helper()
	sol, err := f.solver.Solve(f.sys)
	if err != nil {
		f.t.Fatalf("Solve: %v", err)
	}
	return sol
}

func (f *fixture) expect(sol *Solution, v typesystem.TVar, want string) {
	f.t.Helper()
	got, ok := sol.TypeOf(v)
	if !ok {
		f.t.Fatalf("%s is not fixed", v)
	}
	if got.String() != want {
		f.t.Errorf("%s = %s, want %s", v, got, want)
	}
}

func TestSolveLowerBounds(t *testing.T) {
	f := newFixture(t, Options{})
	v := f.sys.NewVariable("T")
	f.subtype(parse(t, "Int"), v)
	f.subtype(parse(t, "String"), v)
	f.expect(f.solve(), v, "Comparable<*>")
}

func TestSolveUpperBounds(t *testing.T) {
	f := newFixture(t, Options{})
	v := f.sys.NewVariable("T")
	f.subtype(v, parse(t, "Number"))
	f.subtype(v, parse(t, "Comparable<Int>"))
	f.expect(f.solve(), v, "Comparable<Int> & Number")
}

func TestSolveEqualBound(t *testing.T) {
	f := newFixture(t, Options{})
	v := f.sys.NewVariable("E")
	f.subtype(parse(t, "MutableList<Int>"), typesystem.Con("MutableList", v))
	f.expect(f.solve(), v, "Int")
}

func TestSolveDecomposesFunctionTypes(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.sys.NewVariable("P")
	r := f.sys.NewVariable("R")
	f.subtype(parse(t, "(Number) -> String"), typesystem.Func([]typesystem.Type{p}, r))
	sol := f.solve()
	f.expect(sol, p, "Number")
	f.expect(sol, r, "String")
}

func TestSolvePropagatesThroughVariables(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.sys.NewVariable("A")
	b := f.sys.NewVariable("B")
	f.subtype(parse(t, "Int"), a)
	f.subtype(a, b)
	f.subtype(b, parse(t, "Number"))
	sol := f.solve()
	f.expect(sol, a, "Int")
	f.expect(sol, b, "Int")
}

func TestSolveContradiction(t *testing.T) {
	f := newFixture(t, Options{})
	v := f.sys.NewVariable("T")
	f.subtype(parse(t, "String"), v)
	f.subtype(v, parse(t, "Int"))

	_, err := f.solver.Solve(f.sys)
	var c *Contradiction
	if !errors.As(err, &c) {
		t.Fatalf("expected *Contradiction, got %v", err)
	}
	if c.Lower.String() != "String" || c.Upper.String() != "Int" {
		t.Errorf("contradiction bounds = %s / %s", c.Lower, c.Upper)
	}
	if !strings.Contains(c.Error(), "String") || !strings.Contains(c.Error(), "Int") {
		t.Errorf("message should cite both bounds: %s", c)
	}
}

func TestSolveEmptyIntersection(t *testing.T) {
	build := func(opts Options) (*fixture, typesystem.TVar) {
		f := newFixture(t, opts)
		v := f.sys.NewVariable("T")
		f.subtype(v, parse(t, "Int"))
		f.subtype(v, parse(t, "String"))
		return f, v
	}

	f, v := build(Options{})
	sol := f.solve()
	f.expect(sol, v, "Int & String")
	if len(sol.EmptyIntersections) != 1 {
		t.Fatalf("EmptyIntersections = %v, want one", sol.EmptyIntersections)
	}

	f, _ = build(Options{StrictEmptyIntersection: true})
	_, err := f.solver.Solve(f.sys)
	var ei *EmptyIntersectionError
	if !errors.As(err, &ei) {
		t.Fatalf("strict mode should fail with *EmptyIntersectionError, got %v", err)
	}
}

func TestSolveUnconstrained(t *testing.T) {
	f := newFixture(t, Options{})
	ret := f.sys.NewVariable("R")
	free := f.sys.NewVariable("T")
	f.sys.MarkEscaping(ret)

	sol := f.solve()
	f.expect(sol, ret, "Any?")
	if _, ok := sol.TypeOf(free); ok {
		t.Errorf("non-escaping variable without constraints should stay unresolved")
	}
	if len(sol.Unresolved) != 1 || sol.Unresolved[0] != free {
		t.Errorf("Unresolved = %v", sol.Unresolved)
	}
}

func TestSolveCycle(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.sys.NewVariable("A")
	b := f.sys.NewVariable("B")
	f.subtype(a, b)
	f.subtype(b, a)
	f.subtype(parse(t, "Int"), a)
	f.subtype(parse(t, "Double"), b)

	sol := f.solve()
	f.expect(sol, a, "Comparable<*> & Number")
	f.expect(sol, b, "Comparable<*> & Number")
}

func TestSolveCycleOfNothing(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.sys.NewVariable("A")
	b := f.sys.NewVariable("B")
	f.subtype(a, b)
	f.subtype(b, a)
	f.subtype(typesystem.Nothing(), a)

	sol := f.solve()
	f.expect(sol, a, "Nothing")
	f.expect(sol, b, "Nothing")
	if len(sol.EmptyIntersections) != 1 {
		t.Errorf("EmptyIntersections = %v, want one", sol.EmptyIntersections)
	}
}

func TestSolveIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	v := f.sys.NewVariable("T")
	f.sys.NewVariable("U")
	f.subtype(parse(t, "List<Int>"), typesystem.Con("List", v))

	first := f.solve()
	second := f.solve()
	if fmt.Sprint(first.Substitution) != fmt.Sprint(second.Substitution) {
		t.Errorf("substitution changed: %v vs %v", first.Substitution, second.Substitution)
	}
	if len(first.Unresolved) != len(second.Unresolved) {
		t.Errorf("unresolved changed: %v vs %v", first.Unresolved, second.Unresolved)
	}
}

func TestSolveOrderIndependent(t *testing.T) {
	bounds := []string{"Int", "Double", "Long"}
	var results []string
	for shift := range bounds {
		f := newFixture(t, Options{})
		v := f.sys.NewVariable("T")
		for i := range bounds {
			f.subtype(parse(t, bounds[(i+shift)%len(bounds)]), v)
		}
		got, _ := f.solve().TypeOf(v)
		results = append(results, got.String())
	}
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatalf("results depend on constraint order: %v", results)
		}
	}
}

func TestSolveIterationBudget(t *testing.T) {
	f := newFixture(t, Options{IterationBudget: 1})
	a := f.sys.NewVariable("A")
	b := f.sys.NewVariable("B")
	f.subtype(parse(t, "Int"), a)
	f.subtype(parse(t, "Int"), b)

	_, err := f.solver.Solve(f.sys)
	var ie *InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InternalError, got %v", err)
	}
	if ie.SystemID != f.sys.ID {
		t.Errorf("SystemID = %s, want %s", ie.SystemID, f.sys.ID)
	}
	if !strings.Contains(fmt.Sprintf("%+v", ie), f.sys.ID.String()) {
		t.Errorf("%%+v output should include the system dump")
	}
}

func TestComponentsOrder(t *testing.T) {
	g := dependencyGraph{
		1: {2},
		2: {3},
		3: {2},
		4: nil,
	}
	comps := g.components()
	want := "[[2 3] [1] [4]]"
	if got := fmt.Sprint(comps); got != want {
		t.Errorf("components = %s, want %s", got, want)
	}
}
