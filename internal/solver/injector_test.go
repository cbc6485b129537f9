package solver

import (
	"errors"
	"testing"

	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

func TestInjectorConstraints(t *testing.T) {
	table := typesystem.NewClassTable()
	in := &Injector{Table: table}

	tests := []struct {
		name string
		sub  func(v typesystem.TVar) typesystem.Type
		sup  func(v typesystem.TVar) typesystem.Type
		kind constraints.Kind
		want string
	}{
		{
			name: "variable on the right",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("Int") },
			sup:  func(v typesystem.TVar) typesystem.Type { return v },
			kind: constraints.SupertypeOf,
			want: "Int",
		},
		{
			name: "variable on the left",
			sub:  func(v typesystem.TVar) typesystem.Type { return v },
			sup:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("Number") },
			kind: constraints.SubtypeOf,
			want: "Number",
		},
		{
			name: "covariant argument",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("List", typesystem.Con("String")) },
			sup:  func(v typesystem.TVar) typesystem.Type { return typesystem.Con("List", v) },
			kind: constraints.SupertypeOf,
			want: "String",
		},
		{
			name: "argument through supertype",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("Int") },
			sup:  func(v typesystem.TVar) typesystem.Type { return typesystem.Con("Comparable", v) },
			kind: constraints.SubtypeOf,
			want: "Int",
		},
		{
			name: "invariant argument",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("MutableList", typesystem.Con("Int")) },
			sup:  func(v typesystem.TVar) typesystem.Type { return typesystem.Con("MutableList", v) },
			kind: constraints.EqualTo,
			want: "Int",
		},
		{
			name: "nullable into variable",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.MakeNullable(typesystem.Con("Int")) },
			sup:  func(v typesystem.TVar) typesystem.Type { return v },
			kind: constraints.SupertypeOf,
			want: "Int?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := constraints.NewSystem(nil)
			v := sys.NewVariable("T")
			if err := in.Subtype(sys, tt.sub(v), tt.sup(v), at(1), "test"); err != nil {
				t.Fatalf("Subtype: %v", err)
			}
			cs := sys.ConstraintsFor(v)
			if len(cs) != 1 {
				t.Fatalf("constraints = %v, want one", cs)
			}
			if cs[0].Kind != tt.kind || cs[0].Bound.String() != tt.want {
				t.Errorf("constraint = %s, want T %s %s", cs[0], tt.kind, tt.want)
			}
		})
	}
}

func TestInjectorMismatch(t *testing.T) {
	table := typesystem.NewClassTable()
	in := &Injector{Table: table}

	tests := []struct {
		name     string
		sub, sup func(v typesystem.TVar) typesystem.Type
	}{
		{
			name: "closed types",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("String") },
			sup:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("Int") },
		},
		{
			name: "nullable into non-null generic",
			sub: func(typesystem.TVar) typesystem.Type {
				return typesystem.MakeNullable(typesystem.Con("List", typesystem.Con("Int")))
			},
			sup: func(v typesystem.TVar) typesystem.Type { return typesystem.Con("List", v) },
		},
		{
			name: "unrelated generic",
			sub:  func(typesystem.TVar) typesystem.Type { return typesystem.Con("String") },
			sup:  func(v typesystem.TVar) typesystem.Type { return typesystem.Con("List", v) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := constraints.NewSystem(nil)
			v := sys.NewVariable("T")
			err := in.Subtype(sys, tt.sub(v), tt.sup(v), at(3), "argument #1")
			var me *MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MismatchError, got %v", err)
			}
			if me.Position != at(3) {
				t.Errorf("Position = %s, want %s", me.Position, at(3))
			}
		})
	}
}

func TestInjectorErrorTypeIsCompatible(t *testing.T) {
	in := &Injector{Table: typesystem.NewClassTable()}
	sys := constraints.NewSystem(nil)
	v := sys.NewVariable("T")
	if err := in.Subtype(sys, typesystem.TError{}, typesystem.Con("List", v), at(1), ""); err != nil {
		t.Fatalf("error type should be accepted: %v", err)
	}
	if n := sys.ConstraintCount(); n != 0 {
		t.Errorf("error type should not constrain variables, got %d constraints", n)
	}
}
