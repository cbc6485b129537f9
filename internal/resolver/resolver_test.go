package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/solver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

var declared int

// fn declares a function from short strings: type parameters "T" or
// "T: Bound", parameters "x: Type", "vararg xs: Type" or "x: Type = _".
func fn(pkg, name string, tparams []string, params []string, ret string) *symbols.Signature {
	declared++
	owner := fmt.Sprintf("%s.%s#%d", pkg, name, declared)
	scope := make(map[string]typesystem.TParam)
	var bounds []string
	sig := &symbols.Signature{Name: name, Package: pkg}
	for _, text := range tparams {
		n, bound, _ := strings.Cut(text, ":")
		tp := typesystem.TParam{Owner: owner, Name: strings.TrimSpace(n)}
		scope[tp.Name] = tp
		sig.TypeParams = append(sig.TypeParams, tp)
		bounds = append(bounds, strings.TrimSpace(bound))
	}
	for i, b := range bounds {
		if b != "" {
			sig.TypeParams[i].Bound = typesystem.MustParseType(b, scope)
			scope[sig.TypeParams[i].Name] = sig.TypeParams[i]
		}
	}
	for _, text := range params {
		var p symbols.Param
		if rest, ok := strings.CutPrefix(text, "vararg "); ok {
			p.Vararg = true
			text = rest
		}
		if rest, ok := strings.CutSuffix(text, " = _"); ok {
			p.HasDefault = true
			text = rest
		}
		n, typ, _ := strings.Cut(text, ":")
		p.Name = strings.TrimSpace(n)
		p.Type = typesystem.MustParseType(strings.TrimSpace(typ), scope)
		sig.Params = append(sig.Params, p)
	}
	if ret != "" {
		sig.Returns = typesystem.MustParseType(ret, scope)
	}
	return sig
}

func ty(text string) typesystem.Type {
	return typesystem.MustParseType(text, nil)
}

func pos(line int) token.Position {
	return token.Position{File: "t.yaml", Line: line, Column: 1}
}

func args(types ...string) []Argument {
	out := make([]Argument, len(types))
	for i, t := range types {
		out[i] = Argument{Type: ty(t), Position: pos(i + 1)}
	}
	return out
}

func newResolver(strict bool) *Resolver {
	table := typesystem.NewClassTable()
	return New(table, solver.New(table, solver.Options{StrictEmptyIntersection: strict}))
}

func pkgScope(sigs ...*symbols.Signature) *symbols.SymbolTable {
	defaults := symbols.NewSymbolTable(symbols.ScopeDefaultImport, "kotlin")
	pkg := symbols.NewEnclosedSymbolTable(defaults, symbols.ScopePackage, "main")
	for _, s := range sigs {
		pkg.Define(s)
	}
	return pkg
}

func resolve(t *testing.T, r *Resolver, scope *symbols.SymbolTable, site *CallSite) (*ResolvedCall, error) {
	t.Helper()
	var recv typesystem.Type
	if site.Receiver != nil {
		recv = site.Receiver.Type
	}
	call, err := r.ResolveCall(site, scope.LookupCandidates(recv, site.Name))
	if call == nil {
		t.Fatalf("ResolveCall returned a nil call")
	}
	return call, err
}

func TestResolveOverloadByArgument(t *testing.T) {
	r := newResolver(false)
	scope := pkgScope(
		fn("main", "foo", nil, []string{"x: Int"}, "Unit"),
		fn("main", "foo", nil, []string{"x: String"}, "Unit"),
	)

	call, err := resolve(t, r, scope, &CallSite{Position: pos(1), Name: "foo", Args: args("Int")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := call.Candidate.ID(); got != "main.foo(Int)" {
		t.Errorf("resolved to %s, want main.foo(Int)", got)
	}

	call, err = resolve(t, r, scope, &CallSite{Position: pos(2), Name: "foo", Args: args("String")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := call.Candidate.ID(); got != "main.foo(String)" {
		t.Errorf("resolved to %s, want main.foo(String)", got)
	}
}

func TestResolveGenericIdentity(t *testing.T) {
	r := newResolver(false)
	scope := pkgScope(fn("main", "id", []string{"T"}, []string{"x: T"}, "T"))

	call, err := resolve(t, r, scope, &CallSite{Position: pos(1), Name: "id", Args: args("Int")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := call.TypeArguments["T"].String(); got != "Int" {
		t.Errorf("T = %s, want Int", got)
	}
	if got := call.ReturnType.String(); got != "Int" {
		t.Errorf("return type = %s, want Int", got)
	}
	if got, _ := call.ParameterFor(0); got.String() != "Int" {
		t.Errorf("parameter type = %s, want Int", got)
	}
}

func TestResolveBuilderStyleWithExpectedType(t *testing.T) {
	r := newResolver(false)
	scope := pkgScope(fn("main", "foo", []string{"T", "R"}, []string{"t: T", "f: (T) -> R"}, "R"))

	site := &CallSite{
		Position: pos(1),
		Name:     "foo",
		Args: []Argument{
			{Type: ty("Int"), Position: pos(1)},
			{Position: pos(2), Lambda: &Lambda{ParamTypes: []typesystem.Type{nil}}},
		},
		Expected: ty("String"),
	}
	call, err := resolve(t, r, scope, site)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := call.TypeArguments["R"].String(); got != "String" {
		t.Errorf("R = %s, want String", got)
	}
	if got := call.TypeArguments["T"].String(); got != "Int" {
		t.Errorf("T = %s, want Int", got)
	}
	if got := call.LambdaParameterTypes[1]; len(got) != 1 || got[0].String() != "Int" {
		t.Errorf("lambda parameters = %v, want [Int]", got)
	}

	// The lambda result and the expected type agree.
	site.Args[1].Lambda.ReturnType = ty("String")
	call, err = resolve(t, r, scope, site)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := call.ReturnType.String(); got != "String" {
		t.Errorf("return type = %s, want String", got)
	}
}

func TestResolveExpectedTypeMismatchKeepsCandidate(t *testing.T) {
	r := newResolver(false)
	scope := pkgScope(fn("main", "listOf", []string{"T"}, nil, "List<T>"))

	call, err := resolve(t, r, scope, &CallSite{Position: pos(1), Name: "listOf", Expected: ty("String")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !call.OK() {
		t.Fatalf("candidate should stay applicable")
	}
	if got := call.ReturnType.String(); got != "List<Any?>" {
		t.Errorf("return type = %s, want List<Any?>", got)
	}
}

func TestResolveStarImportAmbiguity(t *testing.T) {
	r := newResolver(false)
	defaults := symbols.NewSymbolTable(symbols.ScopeDefaultImport, "kotlin")
	starA := symbols.NewEnclosedSymbolTable(defaults, symbols.ScopeStarImport, "a")
	starA.Define(&symbols.Signature{Name: "ext", Package: "a", Receiver: ty("String"), Returns: ty("Unit")})
	starB := symbols.NewEnclosedSymbolTable(starA, symbols.ScopeStarImport, "b")
	starB.Define(&symbols.Signature{Name: "ext", Package: "b", Receiver: ty("String"), Returns: ty("Unit")})
	scope := symbols.NewEnclosedSymbolTable(starB, symbols.ScopePackage, "main")

	site := &CallSite{Position: pos(3), Name: "ext", Receiver: &Argument{Type: ty("String"), Position: pos(3)}}
	call, err := resolve(t, r, scope, site)
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if call.OK() {
		t.Errorf("ambiguous call must not select a candidate")
	}
	d := amb.Diagnostic()
	if d.Kind != diagnostics.OverloadResolutionAmbiguity {
		t.Errorf("kind = %s", d.Kind)
	}
	joined := strings.Join(d.Related, "\n")
	if !strings.Contains(joined, "a.String.ext()") || !strings.Contains(joined, "b.String.ext()") {
		t.Errorf("ambiguity should name both candidates, got %q", joined)
	}
}

func TestResolveTowerShadowing(t *testing.T) {
	r := newResolver(false)
	defaults := symbols.NewSymbolTable(symbols.ScopeDefaultImport, "kotlin")
	defaults.Define(fn("kotlin", "println", nil, []string{"message: Any?"}, "Unit"))
	local := symbols.NewEnclosedSymbolTable(defaults, symbols.ScopeLocal, "main")
	local.Define(fn("main", "println", nil, []string{"x: Int"}, "Unit"))

	call, err := resolve(t, r, local, &CallSite{Position: pos(1), Name: "println", Args: args("Int")})
	if err != nil || call.Candidate.Package != "main" {
		t.Errorf("closer level should win: %v %v", call, err)
	}
	call, err = resolve(t, r, local, &CallSite{Position: pos(2), Name: "println", Args: args("String")})
	if err != nil || call.Candidate.Package != "kotlin" {
		t.Errorf("inapplicable closer level should fall through: %v %v", call, err)
	}
}

func TestResolveSpecificity(t *testing.T) {
	r := newResolver(false)
	tests := []struct {
		name string
		sigs []*symbols.Signature
		args []string
		want string
	}{
		{
			name: "subtype parameter wins",
			sigs: []*symbols.Signature{
				fn("main", "f", nil, []string{"x: Number"}, ""),
				fn("main", "f", nil, []string{"x: Int"}, ""),
			},
			args: []string{"Int"},
			want: "main.f(Int)",
		},
		{
			name: "non-generic wins",
			sigs: []*symbols.Signature{
				fn("main", "g", []string{"T"}, []string{"x: T"}, ""),
				fn("main", "g", nil, []string{"x: Int"}, ""),
			},
			args: []string{"Int"},
			want: "main.g(Int)",
		},
		{
			name: "no vararg wins",
			sigs: []*symbols.Signature{
				fn("main", "h", nil, []string{"vararg xs: Int"}, ""),
				fn("main", "h", nil, []string{"x: Int"}, ""),
			},
			args: []string{"Int"},
			want: "main.h(Int)",
		},
		{
			name: "fewer defaults win",
			sigs: []*symbols.Signature{
				fn("main", "k", nil, []string{"x: Int", "y: Int = _"}, ""),
				fn("main", "k", nil, []string{"x: Int"}, ""),
			},
			args: []string{"Int"},
			want: "main.k(Int)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := resolve(t, r, pkgScope(tt.sigs...), &CallSite{Position: pos(1), Name: tt.sigs[0].Name, Args: args(tt.args...)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := call.Candidate.ID(); got != tt.want {
				t.Errorf("resolved to %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveIncomparableCandidatesAreAmbiguous(t *testing.T) {
	r := newResolver(false)
	tests := []struct {
		name string
		sigs []*symbols.Signature
		args []string
	}{
		{
			name: "crossed parameters with a default",
			sigs: []*symbols.Signature{
				fn("main", "foo", nil, []string{"a: Int", "b: Any"}, ""),
				fn("main", "foo", nil, []string{"a: Any", "b: Int", "c: Int = _"}, ""),
			},
			args: []string{"Int", "Int"},
		},
		{
			name: "crossed parameters with a vararg",
			sigs: []*symbols.Signature{
				fn("main", "foo", nil, []string{"a: Int", "b: Any"}, ""),
				fn("main", "foo", nil, []string{"a: Any", "vararg b: Int"}, ""),
			},
			args: []string{"Int", "Int"},
		},
		{
			name: "two generics",
			sigs: []*symbols.Signature{
				fn("main", "foo", []string{"T"}, []string{"a: T", "b: Int"}, ""),
				fn("main", "foo", []string{"T"}, []string{"a: Int", "b: T"}, ""),
			},
			args: []string{"Int", "Int"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := resolve(t, r, pkgScope(tt.sigs...), &CallSite{Position: pos(1), Name: "foo", Args: args(tt.args...)})
			var amb *AmbiguityError
			if !errors.As(err, &amb) {
				t.Fatalf("expected AmbiguityError, got %v (resolved to %v)", err, call.Candidate)
			}
			if len(amb.Candidates) != len(tt.sigs) {
				t.Errorf("ambiguity names %d candidates, want %d", len(amb.Candidates), len(tt.sigs))
			}
			if call.OK() {
				t.Errorf("ambiguous call must not select a candidate")
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	r := newResolver(false)

	call, err := resolve(t, r, pkgScope(), &CallSite{Position: pos(1), Name: "missing"})
	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Errorf("expected UnresolvedReferenceError, got %v", err)
	}
	if !typesystem.IsError(call.ReturnType) {
		t.Errorf("failed call should have an error type, got %s", call.ReturnType)
	}

	single := pkgScope(fn("main", "foo", nil, []string{"x: Int"}, ""))
	_, err = resolve(t, r, single, &CallSite{Position: pos(2), Name: "foo", Args: args("String")})
	d, ok := AsDiagnostic(err)
	if !ok || d.Kind != diagnostics.InapplicableCandidate {
		t.Errorf("expected INAPPLICABLE_CANDIDATE, got %v", err)
	}

	_, err = resolve(t, r, single, &CallSite{Position: pos(3), Name: "foo", Args: args("Int", "Int")})
	d, ok = AsDiagnostic(err)
	if !ok || !strings.Contains(d.Message, "wrong arg count") {
		t.Errorf("expected wrong arg count, got %v", err)
	}

	several := pkgScope(
		fn("main", "foo", nil, []string{"x: Int"}, ""),
		fn("main", "foo", nil, []string{"x: Boolean"}, ""),
	)
	_, err = resolve(t, r, several, &CallSite{Position: pos(4), Name: "foo", Args: args("String")})
	d, ok = AsDiagnostic(err)
	if !ok || d.Kind != diagnostics.NoneApplicable || len(d.Related) != 2 {
		t.Errorf("expected NONE_APPLICABLE with 2 candidates, got %v", err)
	}
}

func TestResolveEmptyIntersection(t *testing.T) {
	sig := fn("main", "both", []string{"T"}, []string{"f: (T) -> Unit", "g: (T) -> Unit"}, "")
	site := &CallSite{
		Position: pos(1),
		Name:     "both",
		Args: []Argument{
			{Position: pos(1), Lambda: &Lambda{ParamTypes: []typesystem.Type{ty("Int")}, ReturnType: ty("Unit")}},
			{Position: pos(2), Lambda: &Lambda{ParamTypes: []typesystem.Type{ty("String")}, ReturnType: ty("Unit")}},
		},
	}

	call, err := resolve(t, newResolver(false), pkgScope(sig), site)
	if err != nil {
		t.Fatalf("lenient mode should resolve: %v", err)
	}
	if len(call.Warnings) != 1 || call.Warnings[0].Kind != diagnostics.EmptyIntersection {
		t.Errorf("expected one EMPTY_INTERSECTION warning, got %v", call.Warnings)
	}

	_, err = resolve(t, newResolver(true), pkgScope(sig), site)
	var empty *EmptyIntersectionError
	if !errors.As(err, &empty) {
		t.Fatalf("strict mode should fail with EmptyIntersectionError, got %v", err)
	}
	if d := empty.Diagnostic(); !d.IsError() {
		t.Errorf("strict empty intersection must be an error")
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := newResolver(false)
	a := fn("main", "f", nil, []string{"x: Number"}, "Number")
	b := fn("main", "f", nil, []string{"x: Comparable<Int>"}, "Int")
	site := &CallSite{Position: pos(1), Name: "f", Args: args("Int")}

	cands := []symbols.Candidate{
		{Signature: a, Level: 0, Scope: symbols.ScopePackage},
		{Signature: b, Level: 0, Scope: symbols.ScopePackage},
	}
	reversed := []symbols.Candidate{cands[1], cands[0]}

	_, err1 := r.ResolveCall(site, cands)
	_, err2 := r.ResolveCall(site, reversed)
	var amb1, amb2 *AmbiguityError
	if !errors.As(err1, &amb1) || !errors.As(err2, &amb2) {
		t.Fatalf("expected ambiguity both times: %v / %v", err1, err2)
	}
	d1, d2 := amb1.Diagnostic(), amb2.Diagnostic()
	if strings.Join(d1.Related, ";") != strings.Join(d2.Related, ";") {
		t.Errorf("candidate order changed the result: %v vs %v", d1.Related, d2.Related)
	}
}

type recorder struct {
	calls []*ResolvedCall
	diags []*diagnostics.Diagnostic
}

func (r *recorder) RecordCall(c *ResolvedCall) { r.calls = append(r.calls, c) }
func (r *recorder) Report(d *diagnostics.Diagnostic) { r.diags = append(r.diags, d) }

func TestResolveRecordsExactlyOneOutcome(t *testing.T) {
	r := newResolver(false)
	scope := pkgScope(fn("main", "foo", nil, []string{"x: Int"}, ""))

	rec := &recorder{}
	if _, err := r.Resolve(&CallSite{Position: pos(1), Name: "foo", Args: args("Int")}, scope, rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 || len(rec.diags) != 0 {
		t.Errorf("success: %d calls, %d diagnostics", len(rec.calls), len(rec.diags))
	}

	rec = &recorder{}
	if _, err := r.Resolve(&CallSite{Position: pos(2), Name: "foo", Args: args("String")}, scope, rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 0 || len(rec.diags) != 1 {
		t.Errorf("failure: %d calls, %d diagnostics", len(rec.calls), len(rec.diags))
	}
}
