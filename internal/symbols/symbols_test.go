package symbols

import (
	"testing"

	"github.com/funvibe/typeinfer/internal/typesystem"
)

func sig(pkg, name string, receiver typesystem.Type, params ...typesystem.Type) *Signature {
	s := &Signature{Name: name, Package: pkg, Receiver: receiver, Returns: typesystem.Unit()}
	for i, p := range params {
		s.Params = append(s.Params, Param{Name: string(rune('a' + i)), Type: p})
	}
	return s
}

func buildTower() *SymbolTable {
	defaults := NewSymbolTable(ScopeDefaultImport, "kotlin")
	defaults.Define(sig("kotlin", "println", nil, typesystem.NullableAny()))

	starA := NewEnclosedSymbolTable(defaults, ScopeStarImport, "a")
	starA.Define(sig("a", "ext", typesystem.Con("String")))
	starB := NewEnclosedSymbolTable(starA, ScopeStarImport, "b")
	starB.Define(sig("b", "ext", typesystem.Con("String")))

	pkg := NewEnclosedSymbolTable(starB, ScopePackage, "main")
	pkg.Define(sig("main", "foo", nil, typesystem.Con("String")))
	pkg.Define(sig("main", "foo", nil, typesystem.Con("Int")))

	local := NewEnclosedSymbolTable(pkg, ScopeLocal, "main")
	local.Define(sig("main", "println", nil, typesystem.Con("Int")))
	return local
}

func TestCollectLevels(t *testing.T) {
	table := buildTower()

	cands := Collect(nil, "println", table)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if cands[0].Scope != ScopeLocal || cands[1].Scope != ScopeDefaultImport {
		t.Errorf("candidates not ordered innermost first: %v", cands)
	}
	if cands[0].Level >= cands[1].Level {
		t.Errorf("local level %d should be below default import level %d", cands[0].Level, cands[1].Level)
	}

	exts := Collect(typesystem.Con("String"), "ext", table)
	if len(exts) != 2 {
		t.Fatalf("got %d extension candidates, want 2", len(exts))
	}
	if exts[0].Level != exts[1].Level {
		t.Errorf("star imports should share a level: %d vs %d", exts[0].Level, exts[1].Level)
	}
	if groups := GroupByLevel(exts); len(groups) != 1 {
		t.Errorf("GroupByLevel = %d groups, want 1", len(groups))
	}
}

func TestCollectReceiverFilter(t *testing.T) {
	table := buildTower()
	if got := Collect(nil, "ext", table); len(got) != 0 {
		t.Errorf("extension functions need a receiver, got %v", got)
	}
	if got := Collect(typesystem.Con("String"), "foo", table); len(got) != 0 {
		t.Errorf("plain functions take no receiver, got %v", got)
	}
}

func TestCollectIsPure(t *testing.T) {
	table := buildTower()
	first := Collect(nil, "foo", table)
	first[0].Status = Inapplicable
	second := Collect(nil, "foo", table)
	if second[0].Status != AmbiguousYet {
		t.Errorf("Collect must return fresh candidates")
	}
	if first[0].Signature.ID() != second[0].Signature.ID() || first[1].Signature.ID() != second[1].Signature.ID() {
		t.Errorf("Collect order is not stable")
	}
	if first[0].Signature.ID() != "main.foo(Int)" {
		t.Errorf("candidates within a scope should be ordered by id, got %s", first[0].Signature.ID())
	}
}

func TestSignatureStrings(t *testing.T) {
	tp := typesystem.TParam{Owner: "lib.id#0", Name: "T"}
	s := &Signature{
		Name:       "id",
		Package:    "lib",
		TypeParams: []typesystem.TParam{tp},
		Params:     []Param{{Name: "x", Type: tp}, {Name: "rest", Type: typesystem.Con("Int"), Vararg: true}},
		Returns:    tp,
	}
	if got := s.String(); got != "<T> lib.id(T, vararg Int): T" {
		t.Errorf("String() = %q", got)
	}
	if got := s.ID(); got != "lib.id<T>(T,vararg Int)" {
		t.Errorf("ID() = %q", got)
	}
	if s.VarargIndex() != 1 || s.ParamByName("x") != 0 || s.ParamByName("y") != -1 {
		t.Errorf("parameter helpers are wrong")
	}
}

func TestEffectString(t *testing.T) {
	e := Effect{Condition: ReturnsTrue, Param: 0}
	if got := e.String(); got != "returns(true) implies (#0 != null)" {
		t.Errorf("String() = %q", got)
	}
	e = Effect{Condition: Returns, Param: ReceiverIndex, Type: typesystem.Con("String")}
	if got := e.String(); got != "returns() implies (this is String)" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseInvocationKind(t *testing.T) {
	for _, k := range []InvocationKind{InvocationUnknown, AtMostOnce, ExactlyOnce, AtLeastOnce} {
		got, err := ParseInvocationKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseInvocationKind(%s) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseInvocationKind("TWICE"); err == nil {
		t.Errorf("expected error for unknown kind")
	}
}
