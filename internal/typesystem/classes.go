package typesystem

import (
	"fmt"
	"sort"
	"sync"

	set "github.com/hashicorp/go-set/v2"

	"github.com/funvibe/typeinfer/internal/config"
)

// ClassKind distinguishes classes that can share subtypes from those that cannot.
type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindFinal
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindFinal:
		return "final"
	default:
		return "class"
	}
}

// Variance is the declaration-site variance of a class type parameter.
type Variance int

const (
	Invariant Variance = iota
	Covariant          // out
	Contravariant      // in
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "out"
	case Contravariant:
		return "in"
	default:
		return ""
	}
}

// ParamDecl is a class type parameter.
type ParamDecl struct {
	Name     string
	Variance Variance
}

// ClassDecl declares a class, its type parameters and direct supertypes.
// Supertypes may mention the class's own parameters as TParam{Owner: Name}.
type ClassDecl struct {
	Name       string
	Kind       ClassKind
	Params     []ParamDecl
	Supertypes []TCon
}

// ClassTable is the class hierarchy oracle. Declarations happen while loading;
// afterwards the table is only read and may be shared between analysis workers.
type ClassTable struct {
	classes map[string]*ClassDecl

	mu sync.Mutex
	// supers caches the transitive superclass names of each class.
	supers map[string]*set.Set[string]
}

// NewClassTable creates a table pre-populated with the prelude classes.
func NewClassTable() *ClassTable {
	t := &ClassTable{
		classes: make(map[string]*ClassDecl),
		supers:  make(map[string]*set.Set[string]),
	}
	registerPrelude(t)
	return t
}

// Declare adds a class. Redeclaring a name replaces the previous declaration.
func (t *ClassTable) Declare(decl ClassDecl) {
	d := decl
	if d.Name != config.AnyClassName && d.Name != config.NothingClassName && len(d.Supertypes) == 0 {
		d.Supertypes = []TCon{Any()}
	}
	t.classes[d.Name] = &d
	// Hierarchy changed; drop the cache.
	t.mu.Lock()
	t.supers = make(map[string]*set.Set[string])
	t.mu.Unlock()
}

// Lookup returns the declaration of a class.
func (t *ClassTable) Lookup(name string) (*ClassDecl, bool) {
	d, ok := t.classes[name]
	return d, ok
}

// Names returns all declared class names in sorted order.
func (t *ClassTable) Names() []string {
	names := make([]string, 0, len(t.classes))
	for n := range t.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Superclasses returns the reflexive transitive set of superclass names.
func (t *ClassTable) Superclasses(name string) *set.Set[string] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.supers[name]; ok {
		return s
	}
	result := set.New[string](4)
	t.collectSupers(name, result)
	t.supers[name] = result
	return result
}

func (t *ClassTable) collectSupers(name string, acc *set.Set[string]) {
	if !acc.Insert(name) {
		return
	}
	decl, ok := t.classes[name]
	if !ok {
		return
	}
	for _, st := range decl.Supertypes {
		t.collectSupers(st.Class, acc)
	}
}

// IsSubclass reports whether class sub inherits from (or is) class super.
func (t *ClassTable) IsSubclass(sub, super string) bool {
	if super == config.AnyClassName || sub == config.NothingClassName {
		return true
	}
	return t.Superclasses(sub).Contains(super)
}

// Variances returns the declared variance of each parameter of a class.
// Unknown classes are treated as fully invariant.
func (t *ClassTable) Variances(class string, arity int) []Variance {
	out := make([]Variance, arity)
	if decl, ok := t.classes[class]; ok {
		for i := 0; i < arity && i < len(decl.Params); i++ {
			out[i] = decl.Params[i].Variance
		}
	}
	return out
}

// SupertypeAs views con as an instance of the given class, substituting type
// arguments along the hierarchy. List<Int> viewed as Collection gives
// Collection<Int>. Nullability of con is kept.
func (t *ClassTable) SupertypeAs(con TCon, class string) (TCon, bool) {
	return t.supertypeAs(con, class, make(map[string]bool))
}

func (t *ClassTable) supertypeAs(con TCon, class string, visiting map[string]bool) (TCon, bool) {
	if con.Class == class {
		return con, true
	}
	if visiting[con.Class] {
		return TCon{}, false
	}
	visiting[con.Class] = true
	defer delete(visiting, con.Class)

	decl, ok := t.classes[con.Class]
	if !ok {
		return TCon{}, false
	}
	subst := make(ParamSubst, len(decl.Params))
	for i, p := range decl.Params {
		if i < len(con.Args) {
			subst[decl.Name+"."+p.Name] = con.Args[i]
		}
	}
	for _, st := range decl.Supertypes {
		if !t.Superclasses(st.Class).Contains(class) {
			continue
		}
		inst := Instantiate(st, subst).(TCon)
		inst.Nullable = con.Nullable
		if found, ok := t.supertypeAs(inst, class, visiting); ok {
			return found, true
		}
	}
	return TCon{}, false
}

// Validate checks that a class type refers to a declared class with the right arity.
func (t *ClassTable) Validate(con TCon) error {
	decl, ok := t.classes[con.Class]
	if !ok {
		return fmt.Errorf("unknown class %s", con.Class)
	}
	if len(decl.Params) != len(con.Args) {
		return fmt.Errorf("class %s expects %d type arguments, got %d", con.Class, len(decl.Params), len(con.Args))
	}
	for _, a := range con.Args {
		if inner, ok := a.(TCon); ok {
			if err := t.Validate(inner); err != nil {
				return err
			}
		}
	}
	return nil
}

// Instantiate replaces declared type parameters by the types in subst.
// Parameters missing from subst are left untouched.
func Instantiate(t Type, subst ParamSubst) Type {
	if len(subst) == 0 {
		return t
	}
	switch typ := t.(type) {
	case TParam:
		if r, ok := subst[typ.Key()]; ok {
			return r
		}
		return typ
	case TCon:
		if len(typ.Args) == 0 {
			return typ
		}
		args := make([]Type, len(typ.Args))
		for i, a := range typ.Args {
			args[i] = Instantiate(a, subst)
		}
		return TCon{Class: typ.Class, Args: args, Nullable: typ.Nullable}
	case TIntersection:
		types := make([]Type, len(typ.Types))
		for i, m := range typ.Types {
			types[i] = Instantiate(m, subst)
		}
		return NewIntersection(types...)
	default:
		return t
	}
}

// MentionsParam reports whether t refers to any declared type parameter.
func MentionsParam(t Type) bool {
	switch typ := t.(type) {
	case TParam:
		return true
	case TCon:
		for _, a := range typ.Args {
			if MentionsParam(a) {
				return true
			}
		}
	case TIntersection:
		for _, m := range typ.Types {
			if MentionsParam(m) {
				return true
			}
		}
	}
	return false
}

func registerPrelude(t *ClassTable) {
	param := func(owner, name string) TParam { return TParam{Owner: owner, Name: name} }

	t.Declare(ClassDecl{Name: config.AnyClassName, Kind: KindClass})
	t.Declare(ClassDecl{Name: config.NothingClassName, Kind: KindFinal})
	t.Declare(ClassDecl{Name: config.UnitClassName, Kind: KindFinal})
	t.Declare(ClassDecl{Name: config.NumberClassName, Kind: KindClass})
	t.Declare(ClassDecl{Name: config.CharSequenceClassName, Kind: KindInterface})
	t.Declare(ClassDecl{
		Name:   config.ComparableClassName,
		Kind:   KindInterface,
		Params: []ParamDecl{{Name: "T", Variance: Contravariant}},
	})
	comparableOf := func(class string) TCon {
		return Con(config.ComparableClassName, Con(class))
	}
	for _, n := range []string{config.IntClassName, config.LongClassName, config.DoubleClassName} {
		t.Declare(ClassDecl{
			Name:       n,
			Kind:       KindFinal,
			Supertypes: []TCon{Con(config.NumberClassName), comparableOf(n)},
		})
	}
	t.Declare(ClassDecl{
		Name:       config.StringClassName,
		Kind:       KindFinal,
		Supertypes: []TCon{Con(config.CharSequenceClassName), comparableOf(config.StringClassName)},
	})
	t.Declare(ClassDecl{
		Name:       config.BooleanClassName,
		Kind:       KindFinal,
		Supertypes: []TCon{comparableOf(config.BooleanClassName)},
	})
	t.Declare(ClassDecl{
		Name:   config.ListClassName,
		Kind:   KindInterface,
		Params: []ParamDecl{{Name: "E", Variance: Covariant}},
	})
	t.Declare(ClassDecl{
		Name:       config.MutableListClassName,
		Kind:       KindInterface,
		Params:     []ParamDecl{{Name: "E", Variance: Invariant}},
		Supertypes: []TCon{Con(config.ListClassName, param(config.MutableListClassName, "E"))},
	})

	for arity := 0; arity <= config.MaxFunctionArity; arity++ {
		params := make([]ParamDecl, 0, arity+1)
		for i := 1; i <= arity; i++ {
			params = append(params, ParamDecl{Name: fmt.Sprintf("P%d", i), Variance: Contravariant})
		}
		params = append(params, ParamDecl{Name: "R", Variance: Covariant})
		t.Declare(ClassDecl{Name: FunctionClass(arity), Kind: KindInterface, Params: params})
	}
}
