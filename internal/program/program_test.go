package program

import (
	"strings"
	"testing"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

const sample = `
package: main
imports: [lib.*, util.format]
classes:
  - {name: Shape, kind: interface}
  - {name: Circle, kind: final, supertypes: [Shape]}
  - {name: Box, params: [out T]}
packages:
  - name: kotlin
    functions:
      - {name: println, params: [{name: message, type: "Any?"}]}
  - name: lib
    functions:
      - name: run
        params: [{name: block, type: () -> Unit, invocation: EXACTLY_ONCE}]
      - name: requireCircle
        params: [{name: value, type: "Shape?"}]
        effects: [{when: returns, param: value, is: Circle}]
  - name: util
    functions:
      - {name: format, params: [{name: value, type: Any}], returns: String}
      - {name: hidden, returns: Unit}
functions:
  - name: unbox
    type_params: ["T: Shape"]
    params: [{name: box, type: Box<T>}]
    returns: T
  - name: main
    at: "10:1"
    params: [{name: shape, type: "Shape?", at: "10:10"}, {name: rest, type: Int, vararg: true}]
    body:
      - {val: x, type: Int}
      - expr: {call: run, at: "12:5", args: [{lambda: {body: [{assign: x, to: {value: Int}}]}}]}
      - at: "13:5"
        if: {and: [{not_null: shape}, {is: shape, type: Circle}]}
        then:
          - expr: {ref: shape, required: Circle}
      - at: "15:5"
        while: {call: requireCircle, args: [{ref: shape, at: "15:24"}]}
        body: [{break: true}]
      - {at: "17:5", return: {}}
`

func loadSample(t *testing.T) *Program {
	t.Helper()
	prog, err := Parse([]byte(sample), "main.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func TestParseScopes(t *testing.T) {
	prog := loadSample(t)

	var kinds []string
	for _, s := range prog.Scope.Chain() {
		kinds = append(kinds, s.Kind().String()+":"+s.Package())
	}
	want := []string{"package:main", "explicit import:util", "star import:lib", "default import:kotlin"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("scope chain = %v, want %v", kinds, want)
	}

	if got := prog.Scope.LookupCandidates(nil, "hidden"); len(got) != 0 {
		t.Errorf("hidden should not be imported, got %d candidates", len(got))
	}
	for _, name := range []string{"format", "run", "println", "unbox", "main"} {
		if got := prog.Scope.LookupCandidates(nil, name); len(got) != 1 {
			t.Errorf("%s: got %d candidates, want 1", name, len(got))
		}
	}
}

func TestParseSignatures(t *testing.T) {
	prog := loadSample(t)

	unbox := prog.Scope.LookupCandidates(nil, "unbox")[0].Signature
	if len(unbox.TypeParams) != 1 || unbox.TypeParams[0].Bound == nil {
		t.Fatalf("unbox type params = %v", unbox.TypeParams)
	}
	if !typesystem.Equal(unbox.Returns, unbox.TypeParams[0]) {
		t.Errorf("unbox returns %s, want its type parameter", unbox.Returns)
	}

	run := prog.Scope.LookupCandidates(nil, "run")[0].Signature
	if run.Invocation(0) != symbols.ExactlyOnce {
		t.Errorf("run invocation = %s", run.Invocation(0))
	}

	req := prog.Scope.LookupCandidates(nil, "requireCircle")[0].Signature
	if len(req.Effects) != 1 || req.Effects[0].Condition != symbols.Returns || req.Effects[0].Param != 0 {
		t.Fatalf("requireCircle effects = %v", req.Effects)
	}

	if !prog.Table.IsSubclass("Circle", "Shape") {
		t.Error("Circle should extend Shape")
	}
}

func TestParseBody(t *testing.T) {
	prog := loadSample(t)
	if len(prog.Functions) != 1 {
		t.Fatalf("got %d analyzed functions, want 1 (unbox has no body)", len(prog.Functions))
	}
	fn := prog.Functions[0]
	pos := func(line, col int) token.Position { return token.Position{File: "main.yaml", Line: line, Column: col} }

	if fn.Position != pos(10, 1) || fn.Params[0].Position != pos(10, 10) {
		t.Errorf("function positions = %s, %s", fn.Position, fn.Params[0].Position)
	}
	if fn.Params[1].Position != pos(10, 1) {
		t.Errorf("parameter without at should inherit the function position, got %s", fn.Params[1].Position)
	}
	if got := fn.Params[1].Type.String(); got != "List<Int>" {
		t.Errorf("vararg parameter type = %s, want List<Int>", got)
	}

	if len(fn.Body) != 5 {
		t.Fatalf("got %d statements, want 5", len(fn.Body))
	}

	decl, ok := fn.Body[0].(*dataflow.Declare)
	if !ok || decl.Mutable || decl.Init != nil || decl.Position != pos(10, 1) {
		t.Errorf("statement 0 = %#v", fn.Body[0])
	}

	stmt := fn.Body[1].(*dataflow.ExprStmt)
	call := stmt.Expr.(*dataflow.Call)
	if stmt.Position != pos(12, 5) || call.Name != "run" {
		t.Errorf("statement 1 = %#v", stmt)
	}
	lam := call.Args[0].Value.(*dataflow.LambdaExpr)
	if lam.Position != pos(12, 5) || len(lam.Body) != 1 {
		t.Errorf("lambda = %#v", lam)
	}

	ifs := fn.Body[2].(*dataflow.If)
	and, ok := ifs.Cond.(*dataflow.And)
	if !ok {
		t.Fatalf("if condition = %T, want *dataflow.And", ifs.Cond)
	}
	if _, ok := and.Left.(*dataflow.NotNull); !ok {
		t.Errorf("left = %T", and.Left)
	}
	if is, ok := and.Right.(*dataflow.Is); !ok || is.Type.String() != "Circle" {
		t.Errorf("right = %#v", and.Right)
	}
	ref := ifs.Then[0].(*dataflow.ExprStmt).Expr.(*dataflow.VarRef)
	if ref.Required.String() != "Circle" || ref.Position != pos(13, 5) {
		t.Errorf("ref = %#v", ref)
	}

	loop := fn.Body[3].(*dataflow.While)
	if cc, ok := loop.Cond.(*dataflow.CallCond); !ok || cc.Call.Name != "requireCircle" {
		t.Errorf("while condition = %#v", loop.Cond)
	}
	if _, ok := loop.Body[0].(*dataflow.Break); !ok {
		t.Errorf("loop body = %#v", loop.Body)
	}

	if ret := fn.Body[4].(*dataflow.Return); ret.Value != nil || ret.Position != pos(17, 5) {
		t.Errorf("return = %#v", ret)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing package", "functions: []", "package is required"},
		{"unknown import", "package: main\nimports: [nowhere.f]", "unknown package nowhere"},
		{"bad import", "package: main\nimports: [lib]", "must be pkg.name or pkg.*"},
		{"import of missing name", "package: main\nimports: [lib.f]\npackages: [{name: lib, functions: []}]", "declares no f"},
		{"external body", "package: main\npackages: [{name: lib, functions: [{name: f, body: [{break: true}]}]}]", "cannot have a body"},
		{"duplicate class", "package: main\nclasses: [{name: A}, {name: A}]", "duplicate class A"},
		{"unknown class", "package: main\nfunctions: [{name: f, returns: Missing}]", "Missing"},
		{"two kinds", "package: main\nfunctions: [{name: f, body: [{break: true, continue: true}]}]", "exactly one kind, got [break, continue]"},
		{"no kind", "package: main\nfunctions: [{name: f, body: [{at: \"1:1\"}]}]", "exactly one kind, got []"},
		{"untyped declaration", "package: main\nfunctions: [{name: f, body: [{val: x}]}]", "needs a type or an initializer"},
		{"bad position", "package: main\nfunctions: [{name: f, body: [{at: \"x\", break: true}]}]", "invalid position"},
		{"single and", "package: main\nfunctions: [{name: f, body: [{if: {and: [{not_null: x}]}}]}]", "at least two conditions"},
		{"unknown invocation", "package: main\nfunctions: [{name: f, params: [{name: b, type: () -> Unit, invocation: SOMETIMES}]}]", "SOMETIMES"},
		{"unquoted nullable in flow mapping", "package: main\nfunctions: [{name: f, receiver: Any?, returns: String}]", `must be quoted, as in type: "Int?"`},
		{"nested call without a position", "package: main\nfunctions: [{name: f, body: [{expr: {call: foo, at: \"4:5\", args: [{call: bar}]}}]}]", "position 4:5 is already used by"},
		{"effect on missing param", "package: main\nfunctions: [{name: f, effects: [{when: returns, param: y}]}]", "has no parameter y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "bad.yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
