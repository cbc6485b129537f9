package checkers

import (
	"sort"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// ImplicitNothingChecker warns when a type parameter that appears in the
// return type was inferred to Nothing. Such a call usually hides a missing
// type argument.
type ImplicitNothingChecker struct{}

func (ImplicitNothingChecker) CheckCall(call *resolver.ResolvedCall, _ *Context) []*diagnostics.Diagnostic {
	sig := call.Candidate
	if sig.Returns == nil {
		return nil
	}
	var out []*diagnostics.Diagnostic
	for _, tp := range sig.TypeParams {
		arg, ok := call.TypeArguments[tp.Name]
		if !ok || !typesystem.IsNothing(arg) || !mentions(sig.Returns, tp) {
			continue
		}
		out = append(out, diagnostics.NewWarning(diagnostics.ImplicitNothingTypeArgument, call.Position,
			"type argument %s of %s is implicitly inferred to %s", tp.Name, sig.Name, arg))
	}
	return out
}

// DeprecationChecker warns about calls to deprecated declarations.
type DeprecationChecker struct{}

func (DeprecationChecker) CheckCall(call *resolver.ResolvedCall, _ *Context) []*diagnostics.Diagnostic {
	if call.Candidate.Deprecated == "" {
		return nil
	}
	return []*diagnostics.Diagnostic{
		diagnostics.NewWarning(diagnostics.Deprecation, call.Position,
			"'%s' is deprecated. %s", call.Candidate.String(), call.Candidate.Deprecated),
	}
}

// mentions reports whether t refers to the type parameter tp.
func mentions(t typesystem.Type, tp typesystem.TParam) bool {
	switch x := t.(type) {
	case typesystem.TParam:
		return x.Key() == tp.Key()
	case typesystem.TCon:
		for _, arg := range x.Args {
			if mentions(arg, tp) {
				return true
			}
		}
	case typesystem.TIntersection:
		for _, m := range x.Types {
			if mentions(m, tp) {
				return true
			}
		}
	}
	return false
}

func sortedCalls(res *dataflow.FunctionResult) []*resolver.ResolvedCall {
	out := make([]*resolver.ResolvedCall, 0, len(res.Calls))
	for _, c := range res.Calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Position.Less(out[j].Position)
	})
	return out
}
