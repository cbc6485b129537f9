package checkers

import (
	"testing"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

func at(line int) token.Position {
	return token.Position{File: "checks.yaml", Line: line, Column: 1}
}

func generic(name, ret string) *symbols.Signature {
	tp := typesystem.TParam{Owner: "main." + name, Name: "T"}
	return &symbols.Signature{
		Name:       name,
		Package:    "main",
		TypeParams: []typesystem.TParam{tp},
		Params:     []symbols.Param{{Name: "x", Type: tp}},
		Returns:    typesystem.MustParseType(ret, map[string]typesystem.TParam{"T": tp}),
	}
}

func TestImplicitNothing(t *testing.T) {
	tests := []struct {
		name string
		sig  *symbols.Signature
		arg  string
		want int
	}{
		{"nothing in return position", generic("listOfOne", "List<T>"), "Nothing", 1},
		{"inferred to a real type", generic("listOfOne", "List<T>"), "Int", 0},
		{"not in return position", generic("consume", "Unit"), "Nothing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := &resolver.ResolvedCall{
				Position:      at(1),
				Name:          tt.sig.Name,
				Candidate:     tt.sig,
				TypeArguments: map[string]typesystem.Type{"T": typesystem.MustParseType(tt.arg, nil)},
			}
			got := ImplicitNothingChecker{}.CheckCall(call, &Context{})
			if len(got) != tt.want {
				t.Fatalf("got %d diagnostics, want %d: %v", len(got), tt.want, got)
			}
			if tt.want > 0 && got[0].Kind != diagnostics.ImplicitNothingTypeArgument {
				t.Errorf("kind = %s", got[0].Kind)
			}
		})
	}
}

func TestDeprecation(t *testing.T) {
	sig := &symbols.Signature{Name: "old", Package: "main", Deprecated: "Use new() instead."}
	got := DeprecationChecker{}.CheckCall(&resolver.ResolvedCall{Position: at(2), Name: "old", Candidate: sig}, &Context{})
	if len(got) != 1 || got[0].Kind != diagnostics.Deprecation || got[0].IsError() {
		t.Fatalf("unexpected diagnostics: %v", got)
	}
	if got[0].Message != "'main.old()' is deprecated. Use new() instead." {
		t.Errorf("message = %q", got[0].Message)
	}

	sig.Deprecated = ""
	if got := (DeprecationChecker{}).CheckCall(&resolver.ResolvedCall{Position: at(2), Candidate: sig}, &Context{}); len(got) != 0 {
		t.Errorf("non-deprecated call reported: %v", got)
	}
}

func TestUnusedVariable(t *testing.T) {
	fn := &dataflow.Function{
		Name:   "f",
		Params: []dataflow.Parameter{{Name: "p", Type: typesystem.Con("Int"), Position: at(1)}},
		Body: []dataflow.Statement{
			&dataflow.Declare{Position: at(2), Name: "used", Init: &dataflow.Value{Position: at(2), Type: typesystem.Con("Int")}},
			&dataflow.Declare{Position: at(3), Name: "unused", Init: &dataflow.Value{Position: at(3), Type: typesystem.Con("Int")}},
			&dataflow.Declare{Position: at(4), Name: "_ignored", Init: &dataflow.Value{Position: at(4), Type: typesystem.Con("Int")}},
			&dataflow.ExprStmt{Position: at(5), Expr: &dataflow.VarRef{Position: at(5), Name: "used"}},
		},
	}
	res := &dataflow.FunctionResult{Function: fn, Graph: dataflow.Build(fn, nil)}

	got := UnusedVariableChecker{}.CheckDeclaration(fn, res, &Context{})
	if len(got) != 1 || got[0].Position != at(3) || got[0].Kind != diagnostics.UnusedVariable {
		t.Fatalf("unexpected diagnostics: %v", got)
	}
}

func TestRunSkipsFailedCalls(t *testing.T) {
	deprecated := &symbols.Signature{Name: "old", Package: "main", Deprecated: "Gone."}
	fn := &dataflow.Function{Name: "f"}
	res := &dataflow.FunctionResult{
		Function: fn,
		Graph:    dataflow.Build(fn, nil),
		Calls: map[token.Position]*resolver.ResolvedCall{
			at(2): {Position: at(2), Name: "old", Candidate: deprecated},
			at(1): {Position: at(1), Name: "old", Candidate: deprecated},
			at(3): {Position: at(3), Name: "missing"},
		},
	}

	got := Default().Run(res, &Context{Function: fn})
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(got), got)
	}
	if got[0].Position != at(1) || got[1].Position != at(2) {
		t.Errorf("calls not visited in position order: %v", got)
	}
}
