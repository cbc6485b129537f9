package typesystem

import "github.com/funvibe/typeinfer/internal/config"

// IsSubtype reports whether a is a subtype of b under the class table.
//
// Nothing is the bottom and Any? the top. Nullability is a separate bit:
// T <: T? but not the other way round. Type arguments are compared by the
// declaration-site variance of the class parameter. The error type is
// compatible with everything in both directions.
func IsSubtype(table *ClassTable, a, b Type) bool {
	if Equal(a, b) {
		return true
	}
	if IsError(a) || IsError(b) {
		return true
	}
	if isNothingBottom(a) || Equal(b, NullableAny()) {
		return true
	}

	// Intersections first: A & B <: C if either member is, C <: A & B if C <: both.
	if it, ok := b.(TIntersection); ok {
		for _, m := range it.Types {
			if !IsSubtype(table, a, m) {
				return false
			}
		}
		return true
	}
	if it, ok := a.(TIntersection); ok {
		for _, m := range it.Types {
			if IsSubtype(table, m, b) {
				return true
			}
		}
		return intersectionSubtype(table, it, b)
	}

	switch super := b.(type) {
	case TStar:
		return true
	case TVar:
		// Variables are only equal to themselves; Equal handled that.
		return isNothingBottom(a)
	case TParam:
		if sub, ok := a.(TParam); ok && sub.Key() == super.Key() {
			return true
		}
		if sub, ok := a.(TParam); ok {
			// T <: U when T's bound reaches U through other parameters.
			return IsSubtype(table, sub.UpperBound(), super)
		}
		return isNothingBottom(a)
	}

	switch sub := a.(type) {
	case TStar:
		return Equal(b, NullableAny())
	case TVar:
		return false
	case TParam:
		return IsSubtype(table, sub.UpperBound(), b)
	case TCon:
		super, ok := b.(TCon)
		if !ok {
			return false
		}
		return conSubtype(table, sub, super)
	}
	return false
}

// intersectionSubtype handles A & B <: C where neither member alone is a
// subtype because of nullability: (A? & B) <: B.
func intersectionSubtype(table *ClassTable, it TIntersection, b Type) bool {
	if IsNullable(b) {
		return false
	}
	anyNonNull := false
	for _, m := range it.Types {
		if !IsNullable(m) {
			anyNonNull = true
			break
		}
	}
	if !anyNonNull {
		return false
	}
	for _, m := range it.Types {
		if con, ok := nonNullBound(m); ok && IsSubtype(table, con, b) {
			return true
		}
	}
	return false
}

// nonNullBound returns the non-null class type standing for m.
func nonNullBound(m Type) (TCon, bool) {
	for i := 0; i < 16; i++ {
		switch typ := m.(type) {
		case TCon:
			typ.Nullable = false
			return typ, true
		case TParam:
			m = typ.UpperBound()
		default:
			return TCon{}, false
		}
	}
	return TCon{}, false
}

func isNothingBottom(a Type) bool {
	con, ok := a.(TCon)
	return ok && con.Class == config.NothingClassName && !con.Nullable
}

func conSubtype(table *ClassTable, sub, super TCon) bool {
	if sub.Nullable && !super.Nullable {
		return false
	}
	if sub.Class == config.NothingClassName {
		return true
	}
	if super.Class == config.AnyClassName {
		return true
	}
	view, ok := table.SupertypeAs(sub, super.Class)
	if !ok {
		return false
	}
	if len(super.Args) == 0 {
		return true
	}
	if len(view.Args) != len(super.Args) {
		return false
	}
	variances := table.Variances(super.Class, len(super.Args))
	for i := range super.Args {
		if !ArgumentContains(table, view.Args[i], super.Args[i], variances[i]) {
			return false
		}
	}
	return true
}

// ArgumentContains reports whether type argument sub fits into the position of
// type argument super for a parameter with the given variance.
func ArgumentContains(table *ClassTable, sub, super Type, v Variance) bool {
	if _, ok := super.(TStar); ok {
		return true
	}
	if _, ok := sub.(TStar); ok {
		return false
	}
	switch v {
	case Covariant:
		return IsSubtype(table, sub, super)
	case Contravariant:
		return IsSubtype(table, super, sub)
	default:
		return Equivalent(table, sub, super)
	}
}

// Equivalent reports mutual subtyping.
func Equivalent(table *ClassTable, a, b Type) bool {
	if Equal(a, b) {
		return true
	}
	return IsSubtype(table, a, b) && IsSubtype(table, b, a)
}
