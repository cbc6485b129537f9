package solver

import (
	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// maxInjectDepth stops decomposition of pathologically nested types.
const maxInjectDepth = 64

// Injector turns subtype requirements between types into per-variable
// constraints of a system.
type Injector struct {
	Table *typesystem.ClassTable
}

// Subtype records a <: b. Variables owned by sys receive constraints; pairs
// of closed types are checked directly and yield *MismatchError.
func (in *Injector) Subtype(sys *constraints.System, a, b typesystem.Type, pos token.Position, origin string) error {
	if subst := sys.Substitution(); len(subst) > 0 {
		a, b = a.Apply(subst), b.Apply(subst)
	}
	return in.subtype(sys, a, b, pos, origin, 0)
}

// Equal records a == b.
func (in *Injector) Equal(sys *constraints.System, a, b typesystem.Type, pos token.Position, origin string) error {
	if subst := sys.Substitution(); len(subst) > 0 {
		a, b = a.Apply(subst), b.Apply(subst)
	}
	return in.equal(sys, a, b, pos, origin, 0)
}

func (in *Injector) variable(sys *constraints.System, t typesystem.Type) (typesystem.TVar, bool) {
	tv, ok := t.(typesystem.TVar)
	if !ok || !sys.Owns(tv) {
		return typesystem.TVar{}, false
	}
	return tv, true
}

func (in *Injector) subtype(sys *constraints.System, a, b typesystem.Type, pos token.Position, origin string, depth int) error {
	mismatch := &MismatchError{Sub: a, Super: b, Position: pos, Origin: origin}
	if depth > maxInjectDepth {
		return mismatch
	}
	if typesystem.IsError(a) || typesystem.IsError(b) {
		return nil
	}

	av, aIsVar := in.variable(sys, a)
	bv, bIsVar := in.variable(sys, b)
	switch {
	case aIsVar && bIsVar:
		if av.ID != bv.ID {
			sys.AddConstraint(bv, constraints.SupertypeOf, av, pos, origin)
			sys.AddConstraint(av, constraints.SubtypeOf, bv, pos, origin)
		}
		return nil
	case bIsVar:
		sys.AddConstraint(bv, constraints.SupertypeOf, a, pos, origin)
		return nil
	case aIsVar:
		sys.AddConstraint(av, constraints.SubtypeOf, b, pos, origin)
		return nil
	}

	if typesystem.IsClosed(a) && typesystem.IsClosed(b) {
		if typesystem.IsSubtype(in.Table, a, b) {
			return nil
		}
		return mismatch
	}

	if _, ok := b.(typesystem.TStar); ok {
		return nil
	}
	if it, ok := b.(typesystem.TIntersection); ok {
		for _, m := range it.Types {
			if err := in.subtype(sys, a, m, pos, origin, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	switch sub := a.(type) {
	case typesystem.TIntersection:
		// Pick the member that can be viewed as the target class.
		super, ok := b.(typesystem.TCon)
		if !ok {
			return mismatch
		}
		for _, m := range sub.Types {
			if con, ok := m.(typesystem.TCon); ok {
				if _, ok := in.Table.SupertypeAs(con, super.Class); ok {
					return in.subtype(sys, m, b, pos, origin, depth+1)
				}
			}
		}
		return mismatch
	case typesystem.TParam:
		return in.subtype(sys, sub.UpperBound(), b, pos, origin, depth+1)
	case typesystem.TCon:
		super, ok := b.(typesystem.TCon)
		if !ok {
			return mismatch
		}
		return in.conSubtype(sys, sub, super, mismatch, depth)
	}
	return mismatch
}

func (in *Injector) conSubtype(sys *constraints.System, sub, super typesystem.TCon, mismatch *MismatchError, depth int) error {
	if sub.Nullable && !super.Nullable {
		return mismatch
	}
	if typesystem.IsNothing(sub) {
		return nil
	}
	view, ok := in.Table.SupertypeAs(sub, super.Class)
	if !ok {
		return mismatch
	}
	if len(super.Args) == 0 {
		return nil
	}
	if len(view.Args) != len(super.Args) {
		return mismatch
	}

	pos, origin := mismatch.Position, mismatch.Origin
	variances := in.Table.Variances(super.Class, len(super.Args))
	for i, target := range super.Args {
		arg := view.Args[i]
		if _, ok := target.(typesystem.TStar); ok {
			continue
		}
		if _, ok := arg.(typesystem.TStar); ok {
			return mismatch
		}
		var err error
		switch variances[i] {
		case typesystem.Covariant:
			err = in.subtype(sys, arg, target, pos, origin, depth+1)
		case typesystem.Contravariant:
			err = in.subtype(sys, target, arg, pos, origin, depth+1)
		default:
			err = in.equal(sys, arg, target, pos, origin, depth+1)
		}
		if err != nil {
			return mismatch
		}
	}
	return nil
}

func (in *Injector) equal(sys *constraints.System, a, b typesystem.Type, pos token.Position, origin string, depth int) error {
	if typesystem.IsError(a) || typesystem.IsError(b) {
		return nil
	}
	av, aIsVar := in.variable(sys, a)
	bv, bIsVar := in.variable(sys, b)
	switch {
	case aIsVar && bIsVar:
		if av.ID != bv.ID {
			sys.AddConstraint(av, constraints.EqualTo, bv, pos, origin)
			sys.AddConstraint(bv, constraints.EqualTo, av, pos, origin)
		}
		return nil
	case aIsVar:
		sys.AddConstraint(av, constraints.EqualTo, b, pos, origin)
		return nil
	case bIsVar:
		sys.AddConstraint(bv, constraints.EqualTo, a, pos, origin)
		return nil
	}
	if err := in.subtype(sys, a, b, pos, origin, depth); err != nil {
		return err
	}
	return in.subtype(sys, b, a, pos, origin, depth)
}
