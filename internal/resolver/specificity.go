package resolver

import (
	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// mostSpecific returns the unique most specific attempt, or nil and the
// tied attempts. The maximal candidates by parameter types are found first
// without and then with generic discrimination; call shape only decides
// among maximal candidates. No unique winner ties every candidate.
func (r *Resolver) mostSpecific(cands []*attempt) (*attempt, []*attempt, error) {
	if len(cands) == 1 {
		return cands[0], nil, nil
	}

	for _, discriminate := range []bool{false, true} {
		var maximal []*attempt
		for _, a := range cands {
			best := true
			for _, b := range cands {
				if a == b {
					continue
				}
				ok, err := r.notLessSpecificCall(a, b, discriminate)
				if err != nil {
					return nil, nil, err
				}
				if !ok {
					best = false
					break
				}
			}
			if best {
				maximal = append(maximal, a)
			}
		}
		if winner := exactMaxShape(maximal); winner != nil {
			return winner, nil, nil
		}
	}
	return nil, cands, nil
}

// notLessSpecificCall compares parameter types. With discriminate set, a
// non-generic candidate beats a generic one and two generic candidates are
// not comparable.
func (r *Resolver) notLessSpecificCall(a, b *attempt, discriminate bool) (bool, error) {
	if discriminate {
		ga, gb := a.sig().IsGeneric(), b.sig().IsGeneric()
		switch {
		case ga && !gb:
			return false, nil
		case !ga && gb:
			return true, nil
		case ga && gb:
			return false, nil
		}
	}
	return r.notLessSpecific(a, b)
}

// notLessSpecific reports whether every parameter a maps an argument to is
// a subtype of b's parameter for the same argument. a's type parameters
// stay rigid while b's are inferred.
func (r *Resolver) notLessSpecific(a, b *attempt) (bool, error) {
	in := r.Solver.Injector()
	sys := constraints.NewSystem(r.IDs)
	sa, sb := a.sig(), b.sig()
	var pos token.Position
	origin := "specificity of " + sa.ID()

	subst := make(typesystem.ParamSubst, len(sb.TypeParams))
	vars := make([]typesystem.TVar, len(sb.TypeParams))
	for i, tp := range sb.TypeParams {
		vars[i] = sys.NewVariable(tp.Name)
		subst[tp.Key()] = vars[i]
	}
	for i, tp := range sb.TypeParams {
		if tp.Bound == nil {
			continue
		}
		if err := in.Subtype(sys, vars[i], typesystem.Instantiate(tp.Bound, subst), pos, origin); err != nil {
			return false, internalOnly(err)
		}
	}

	if sa.Receiver != nil && sb.Receiver != nil {
		if err := in.Subtype(sys, sa.Receiver, typesystem.Instantiate(sb.Receiver, subst), pos, origin); err != nil {
			return false, internalOnly(err)
		}
	}
	for k, pa := range a.mapping.params {
		ta := sa.Params[pa].Type
		tb := typesystem.Instantiate(sb.Params[b.mapping.params[k]].Type, subst)
		if err := in.Subtype(sys, ta, tb, pos, origin); err != nil {
			return false, internalOnly(err)
		}
	}

	if _, err := r.Solver.Solve(sys); err != nil {
		return false, internalOnly(err)
	}
	return true, nil
}

func internalOnly(err error) error {
	if isInternal(err) {
		return err
	}
	return nil
}

// notLessSpecificShape reports whether a needs no vararg expansion that b
// avoids and uses no more default values than b.
func notLessSpecificShape(a, b *attempt) bool {
	va, vb := a.mapping.varargUsed, b.mapping.varargUsed
	if va && !vb {
		return false
	}
	if !va && vb {
		return true
	}
	return a.mapping.defaultsUsed <= b.mapping.defaultsUsed
}

// exactMaxShape returns the one attempt whose shape is not less specific
// than all others while no other is as specific as it, or nil.
func exactMaxShape(pool []*attempt) *attempt {
	var result *attempt
	for _, at := range pool {
		if result == nil || notLessSpecificShape(at, result) {
			result = at
		}
	}
	if result == nil {
		return nil
	}
	for _, at := range pool {
		if at != result && notLessSpecificShape(at, result) {
			return nil
		}
	}
	return result
}
