package typesystem

import (
	"sort"

	set "github.com/hashicorp/go-set/v2"

	"github.com/funvibe/typeinfer/internal/config"
)

// maxBoundDepth limits recursion into type arguments when computing common
// supertypes of recursive hierarchies (Int : Comparable<Int>).
const maxBoundDepth = 3

// CommonSupertype returns the least upper bound of types. The result is
// nullable if any input is. When several minimal common superclasses exist
// the result is their intersection. It never fails: without anything better
// it returns Any or Any?.
func CommonSupertype(table *ClassTable, types ...Type) Type {
	return commonSupertype(table, types, 0)
}

func commonSupertype(table *ClassTable, types []Type, depth int) Type {
	var errType Type
	nullable := false
	var rest []Type
	for _, t := range types {
		if IsError(t) {
			if errType == nil {
				errType = t
			}
			continue
		}
		if IsNullable(t) {
			nullable = true
		}
		if IsNothing(t) {
			continue
		}
		rest = append(rest, t)
	}

	if len(rest) == 0 {
		if errType != nil {
			return errType
		}
		if nullable {
			return NullableNothing()
		}
		return Nothing()
	}

	withNull := func(t Type) Type {
		if nullable {
			return MakeNullable(t)
		}
		return t
	}

	// One of the inputs may already be the answer.
	for _, cand := range rest {
		target := withNull(cand)
		all := true
		for _, t := range rest {
			if !IsSubtype(table, t, target) {
				all = false
				break
			}
		}
		if all {
			return target
		}
	}

	if depth >= maxBoundDepth {
		return withNull(Any())
	}

	views := make([][]TCon, len(rest))
	var common *set.Set[string]
	for i, t := range rest {
		views[i] = classViews(t)
		if len(views[i]) == 0 {
			return withNull(Any())
		}
		supers := set.New[string](8)
		for _, v := range views[i] {
			supers.InsertSet(table.Superclasses(v.Class))
		}
		if common == nil {
			common = supers
		} else {
			common = set.From(common.Intersect(supers).Slice())
		}
	}

	minimal := minimalClasses(table, common)
	if len(minimal) == 0 {
		return withNull(Any())
	}

	members := make([]Type, 0, len(minimal))
	for _, class := range minimal {
		members = append(members, commonInstance(table, class, views, depth))
	}
	return withNull(NewIntersection(members...))
}

// classViews returns the class types a type is known to be an instance of.
func classViews(t Type) []TCon {
	switch typ := t.(type) {
	case TCon:
		typ.Nullable = false
		return []TCon{typ}
	case TParam:
		return classViews(typ.UpperBound())
	case TIntersection:
		var out []TCon
		for _, m := range typ.Types {
			out = append(out, classViews(m)...)
		}
		return out
	default:
		return nil
	}
}

// minimalClasses keeps classes of the set that have no proper subclass in the set.
// Any is dropped when anything else remains.
func minimalClasses(table *ClassTable, classes *set.Set[string]) []string {
	if classes == nil {
		return nil
	}
	names := classes.Slice()
	sort.Strings(names)
	var out []string
	for _, c := range names {
		minimal := true
		for _, d := range names {
			if d != c && table.IsSubclass(d, c) {
				minimal = false
				break
			}
		}
		if minimal {
			out = append(out, c)
		}
	}
	if len(out) > 1 {
		filtered := out[:0]
		for _, c := range out {
			if c != config.AnyClassName {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	return out
}

// commonInstance builds class<args> where every argument is merged from the
// inputs viewed as that class.
func commonInstance(table *ClassTable, class string, views [][]TCon, depth int) Type {
	decl, ok := table.Lookup(class)
	if !ok || len(decl.Params) == 0 {
		return Con(class)
	}

	perArg := make([][]Type, len(decl.Params))
	for _, vs := range views {
		var found TCon
		hit := false
		for _, v := range vs {
			if sup, ok := table.SupertypeAs(v, class); ok {
				found, hit = sup, true
				break
			}
		}
		if !hit || len(found.Args) != len(decl.Params) {
			return Con(class, starArgs(len(decl.Params))...)
		}
		for i, a := range found.Args {
			perArg[i] = append(perArg[i], a)
		}
	}

	args := make([]Type, len(decl.Params))
	for i, p := range decl.Params {
		args[i] = mergeArgument(table, perArg[i], p.Variance, depth)
	}
	return Con(class, args...)
}

func mergeArgument(table *ClassTable, args []Type, v Variance, depth int) Type {
	allEqual := true
	for _, a := range args[1:] {
		if !Equal(a, args[0]) {
			allEqual = false
			break
		}
	}
	if allEqual {
		return args[0]
	}
	for _, a := range args {
		if _, ok := a.(TStar); ok {
			return TStar{}
		}
	}
	switch v {
	case Covariant:
		return commonSupertype(table, args, depth+1)
	case Contravariant:
		if glb, empty := Intersect(table, args...); !empty {
			return glb
		}
		return TStar{}
	default:
		return TStar{}
	}
}

func starArgs(n int) []Type {
	out := make([]Type, n)
	for i := range out {
		out[i] = TStar{}
	}
	return out
}

// Intersect returns the greatest lower bound of types, used to combine upper
// bounds. empty is true when two members can have no common value, e.g. two
// unrelated non-interface classes. The intersection type is still returned
// in that case.
func Intersect(table *ClassTable, types ...Type) (Type, bool) {
	var members []Type
	allNullable := true
	for _, t := range types {
		if IsError(t) {
			continue
		}
		if Equal(t, NullableAny()) {
			continue
		}
		if !IsNullable(t) {
			allNullable = false
		}
		if it, ok := t.(TIntersection); ok {
			members = append(members, it.Types...)
		} else {
			members = append(members, t)
		}
	}
	if len(members) == 0 {
		return NullableAny(), false
	}

	if !allNullable {
		for i, m := range members {
			if _, ok := m.(TCon); ok {
				members[i] = MakeNonNull(m)
			}
		}
	}

	for _, m := range members {
		if IsNothing(m) {
			return m, false
		}
	}

	// Keep only minimal members.
	var kept []Type
	for i, m := range members {
		redundant := false
		for j, other := range members {
			if i == j {
				continue
			}
			if IsSubtype(table, other, m) && (!IsSubtype(table, m, other) || j < i) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, m)
		}
	}

	empty := false
	for i := 0; i < len(kept) && !empty; i++ {
		for j := i + 1; j < len(kept); j++ {
			if disjoint(table, kept[i], kept[j]) {
				empty = true
				break
			}
		}
	}
	return NewIntersection(kept...), empty
}

// disjoint reports whether two class types cannot share a value. Interfaces
// never make an intersection empty; two classes do unless one inherits the other.
func disjoint(table *ClassTable, a, b Type) bool {
	ca, ok1 := a.(TCon)
	cb, ok2 := b.(TCon)
	if !ok1 || !ok2 {
		return false
	}
	if isInterface(table, ca.Class) || isInterface(table, cb.Class) {
		return false
	}
	return !table.IsSubclass(ca.Class, cb.Class) && !table.IsSubclass(cb.Class, ca.Class)
}

func isInterface(table *ClassTable, class string) bool {
	decl, ok := table.Lookup(class)
	return ok && decl.Kind == KindInterface
}
