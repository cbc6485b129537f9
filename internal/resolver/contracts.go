package resolver

import (
	"github.com/funvibe/typeinfer/internal/symbols"
)

// InvocationKinds returns, for every argument of site, the invocation kind
// declared by the parameters it maps to. When the candidates disagree, or
// none accepts the arguments, the kind is InvocationUnknown.
func InvocationKinds(site *CallSite, cands []symbols.Candidate) []symbols.InvocationKind {
	out := make([]symbols.InvocationKind, len(site.Args))
	seen := make([]bool, len(site.Args))
	conflict := make([]bool, len(site.Args))
	for _, c := range cands {
		m, err := mapArguments(c.Signature, site.Args)
		if err != nil {
			continue
		}
		for i, p := range m.params {
			k := c.Signature.Invocation(p)
			switch {
			case !seen[i]:
				out[i], seen[i] = k, true
			case out[i] != k:
				conflict[i] = true
			}
		}
	}
	for i := range out {
		if conflict[i] {
			out[i] = symbols.InvocationUnknown
		}
	}
	return out
}
