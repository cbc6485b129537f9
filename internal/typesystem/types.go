package typesystem

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/typeinfer/internal/config"
)

// Type is the interface for all types in our system.
// Types are immutable values; every operation returns a new Type.
type Type interface {
	String() string
	Apply(Subst) Type
	FreeTypeVariables() []TVar
}

// TCon is a concrete class type (e.g. Int, List<String>?).
type TCon struct {
	Class    string
	Args     []Type
	Nullable bool
}

func (t TCon) String() string {
	if isFunctionClass(t.Class) && len(t.Args) > 0 {
		params := make([]string, 0, len(t.Args)-1)
		for _, p := range t.Args[:len(t.Args)-1] {
			params = append(params, p.String())
		}
		s := fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), t.Args[len(t.Args)-1])
		if t.Nullable {
			return "(" + s + ")?"
		}
		return s
	}

	s := t.Class
	if len(t.Args) > 0 {
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		s += "<" + strings.Join(args, ", ") + ">"
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

func (t TCon) Apply(s Subst) Type {
	if len(t.Args) == 0 || len(s) == 0 {
		return t
	}
	args := make([]Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.Apply(s)
	}
	return TCon{Class: t.Class, Args: args, Nullable: t.Nullable}
}

func (t TCon) FreeTypeVariables() []TVar {
	var vars []TVar
	for _, a := range t.Args {
		vars = append(vars, a.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// TVar is an inference variable. It is created by a constraint system for
// one call instantiation and never outlives that system.
type TVar struct {
	ID   int
	Name string // Optional human name for diagnostics (usually the type parameter name)
}

func (t TVar) String() string {
	if t.Name == "" {
		return "_t" + strconv.Itoa(t.ID)
	}
	return t.Name
}

func (t TVar) Apply(s Subst) Type {
	return applyWithCycleCheck(t, s, make(map[int]bool))
}

func (t TVar) FreeTypeVariables() []TVar {
	return []TVar{t}
}

// applyWithCycleCheck resolves chains of variable bindings, stopping on
// cycles so that a (buggy) self-referencing substitution cannot loop.
func applyWithCycleCheck(t TVar, s Subst, visited map[int]bool) Type {
	if visited[t.ID] {
		return t
	}
	replacement, ok := s[t.ID]
	if !ok {
		return t
	}
	if tv, ok := replacement.(TVar); ok {
		if tv.ID == t.ID {
			return t
		}
		visited[t.ID] = true
		return applyWithCycleCheck(tv, s, visited)
	}
	visited[t.ID] = true
	return applyNested(replacement, s, visited)
}

func applyNested(t Type, s Subst, visited map[int]bool) Type {
	switch typ := t.(type) {
	case TVar:
		return applyWithCycleCheck(typ, s, visited)
	case TCon:
		if len(typ.Args) == 0 {
			return typ
		}
		args := make([]Type, len(typ.Args))
		for i, a := range typ.Args {
			args[i] = applyNested(a, s, copyVisited(visited))
		}
		return TCon{Class: typ.Class, Args: args, Nullable: typ.Nullable}
	case TIntersection:
		types := make([]Type, len(typ.Types))
		for i, m := range typ.Types {
			types[i] = applyNested(m, s, copyVisited(visited))
		}
		return NewIntersection(types...)
	default:
		return t
	}
}

func copyVisited(m map[int]bool) map[int]bool {
	newMap := make(map[int]bool, len(m))
	for k, v := range m {
		newMap[k] = v
	}
	return newMap
}

// TParam is a reference to a declared type parameter inside a signature or
// class declaration. It is rigid: only instantiation replaces it.
type TParam struct {
	Owner string
	Name  string
	Bound Type // Upper bound; nil means Any?
}

func (t TParam) String() string { return t.Name }

func (t TParam) Apply(Subst) Type { return t }

func (t TParam) FreeTypeVariables() []TVar {
	return nil
}

// Key identifies the parameter within its owner.
func (t TParam) Key() string {
	return t.Owner + "." + t.Name
}

// UpperBound returns the declared bound or Any?.
func (t TParam) UpperBound() Type {
	if t.Bound == nil {
		return NullableAny()
	}
	return t.Bound
}

// TIntersection is an intersection of types (A & B). Use NewIntersection
// to build a normalized value.
type TIntersection struct {
	Types []Type // At least 2 types, flattened, deduplicated and sorted
}

func (t TIntersection) String() string {
	parts := make([]string, len(t.Types))
	for i, m := range t.Types {
		parts[i] = m.String()
	}
	return strings.Join(parts, " & ")
}

func (t TIntersection) Apply(s Subst) Type {
	if len(s) == 0 {
		return t
	}
	types := make([]Type, len(t.Types))
	for i, m := range t.Types {
		types[i] = m.Apply(s)
	}
	return NewIntersection(types...)
}

func (t TIntersection) FreeTypeVariables() []TVar {
	var vars []TVar
	for _, m := range t.Types {
		vars = append(vars, m.FreeTypeVariables()...)
	}
	return uniqueTVars(vars)
}

// NewIntersection flattens nested intersections, removes duplicates and
// sorts the members. A single remaining member is returned as is.
func NewIntersection(types ...Type) Type {
	var flat []Type
	for _, t := range types {
		if it, ok := t.(TIntersection); ok {
			flat = append(flat, it.Types...)
		} else {
			flat = append(flat, t)
		}
	}

	seen := make(map[string]bool)
	var unique []Type
	for _, t := range flat {
		s := t.String()
		if !seen[s] {
			seen[s] = true
			unique = append(unique, t)
		}
	}

	switch len(unique) {
	case 0:
		return NullableAny()
	case 1:
		return unique[0]
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].String() < unique[j].String()
	})
	return TIntersection{Types: unique}
}

// TError is the type of an expression whose analysis failed. It is
// compatible with every type so that one error does not cascade.
type TError struct {
	Reason string
}

func (t TError) String() string {
	if t.Reason == "" {
		return "<error>"
	}
	return "<error: " + t.Reason + ">"
}

func (t TError) Apply(Subst) Type { return t }

func (t TError) FreeTypeVariables() []TVar { return nil }

// TStar is a star projection (List<*>). It is only meaningful as a type argument.
type TStar struct{}

func (TStar) String() string { return "*" }

func (t TStar) Apply(Subst) Type { return t }

func (TStar) FreeTypeVariables() []TVar { return nil }

// Subst maps type variable ids to types.
type Subst map[int]Type

// Compose combines two substitutions: s1 is applied after s2.
func (s1 Subst) Compose(s2 Subst) Subst {
	subst := Subst{}
	for k, v := range s2 {
		subst[k] = v
	}
	for k, v := range s1 {
		subst[k] = v.Apply(s2)
	}
	return subst
}

// ParamSubst maps TParam keys to replacement types.
type ParamSubst map[string]Type

func uniqueTVars(vars []TVar) []TVar {
	if len(vars) < 2 {
		return vars
	}
	unique := []TVar{}
	seen := map[int]bool{}
	for _, v := range vars {
		if !seen[v.ID] {
			seen[v.ID] = true
			unique = append(unique, v)
		}
	}
	return unique
}

// Constructors for well-known types.

func Any() TCon             { return TCon{Class: config.AnyClassName} }
func NullableAny() TCon     { return TCon{Class: config.AnyClassName, Nullable: true} }
func Nothing() TCon         { return TCon{Class: config.NothingClassName} }
func NullableNothing() TCon { return TCon{Class: config.NothingClassName, Nullable: true} }
func Unit() TCon            { return TCon{Class: config.UnitClassName} }

// Con builds a non-null class type.
func Con(class string, args ...Type) TCon {
	return TCon{Class: class, Args: args}
}

// Func builds the FunctionN type for the given parameter and return types.
func Func(params []Type, ret Type) TCon {
	args := make([]Type, 0, len(params)+1)
	args = append(args, params...)
	args = append(args, ret)
	return TCon{Class: FunctionClass(len(params)), Args: args}
}

// FunctionClass returns the class name of an n-ary function type.
func FunctionClass(arity int) string {
	return config.FunctionClassPrefix + strconv.Itoa(arity)
}

// FunctionParts splits a FunctionN type into parameter and return types.
func FunctionParts(t Type) (params []Type, ret Type, ok bool) {
	con, isCon := t.(TCon)
	if !isCon || !isFunctionClass(con.Class) || len(con.Args) == 0 {
		return nil, nil, false
	}
	return con.Args[:len(con.Args)-1], con.Args[len(con.Args)-1], true
}

func isFunctionClass(name string) bool {
	rest, ok := strings.CutPrefix(name, config.FunctionClassPrefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// IsNullable reports whether values of t may be null.
func IsNullable(t Type) bool {
	switch typ := t.(type) {
	case TCon:
		return typ.Nullable
	case TParam:
		return IsNullable(typ.UpperBound())
	case TIntersection:
		for _, m := range typ.Types {
			if !IsNullable(m) {
				return false
			}
		}
		return true
	case TStar:
		return true
	default:
		return false
	}
}

// MakeNullable returns the nullable version of t where the model has one.
func MakeNullable(t Type) Type {
	switch typ := t.(type) {
	case TCon:
		typ.Nullable = true
		return typ
	case TIntersection:
		types := make([]Type, len(typ.Types))
		for i, m := range typ.Types {
			types[i] = MakeNullable(m)
		}
		return NewIntersection(types...)
	default:
		return t
	}
}

// MakeNonNull strips nullability (used by != null smart casts).
func MakeNonNull(t Type) Type {
	switch typ := t.(type) {
	case TCon:
		typ.Nullable = false
		return typ
	case TIntersection:
		types := make([]Type, len(typ.Types))
		for i, m := range typ.Types {
			types[i] = MakeNonNull(m)
		}
		return NewIntersection(types...)
	case TParam:
		return NewIntersection(typ, Any())
	default:
		return t
	}
}

// IsNothing reports whether t is Nothing (nullable or not).
func IsNothing(t Type) bool {
	con, ok := t.(TCon)
	return ok && con.Class == config.NothingClassName
}

// IsError reports whether t is the error type.
func IsError(t Type) bool {
	_, ok := t.(TError)
	return ok
}

// IsClosed reports whether t contains no inference variables.
func IsClosed(t Type) bool {
	return len(t.FreeTypeVariables()) == 0
}

// Mentions reports whether variable v occurs in t.
func Mentions(t Type, v TVar) bool {
	for _, fv := range t.FreeTypeVariables() {
		if fv.ID == v.ID {
			return true
		}
	}
	return false
}

// Equal is structural type equality. Intersections are compared after
// normalization, so member order does not matter.
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case TCon:
		y, ok := b.(TCon)
		if !ok || x.Class != y.Class || x.Nullable != y.Nullable || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case TVar:
		y, ok := b.(TVar)
		return ok && x.ID == y.ID
	case TParam:
		y, ok := b.(TParam)
		return ok && x.Key() == y.Key()
	case TIntersection:
		y, ok := b.(TIntersection)
		if !ok || len(x.Types) != len(y.Types) {
			return false
		}
		for i := range x.Types {
			if !Equal(x.Types[i], y.Types[i]) {
				return false
			}
		}
		return true
	case TError:
		_, ok := b.(TError)
		return ok
	case TStar:
		_, ok := b.(TStar)
		return ok
	default:
		return false
	}
}

// Key renders t unambiguously: variables carry their id and declared
// parameters their owner. Use it where String would conflate distinct types.
func Key(t Type) string {
	switch typ := t.(type) {
	case TVar:
		return typ.String() + "#" + strconv.Itoa(typ.ID)
	case TParam:
		return typ.Key()
	case TCon:
		if len(typ.Args) == 0 {
			return typ.String()
		}
		args := make([]string, len(typ.Args))
		for i, a := range typ.Args {
			args[i] = Key(a)
		}
		s := typ.Class + "<" + strings.Join(args, ", ") + ">"
		if typ.Nullable {
			s += "?"
		}
		return s
	case TIntersection:
		parts := make([]string, len(typ.Types))
		for i, m := range typ.Types {
			parts[i] = Key(m)
		}
		return strings.Join(parts, " & ")
	default:
		return t.String()
	}
}
