package resolver

import (
	"fmt"

	"github.com/funvibe/typeinfer/internal/symbols"
)

// argumentMapping assigns call arguments to candidate parameters.
type argumentMapping struct {
	params       []int // params[i] is the parameter of argument i
	defaultsUsed int
	varargUsed   bool // At least one argument went into the vararg parameter
}

// mapArguments matches positional arguments in order, then named arguments
// by name. Positional arguments after the vararg parameter all land in it.
// Parameters left without a value must have a default or be the vararg.
func mapArguments(sig *symbols.Signature, args []Argument) (*argumentMapping, error) {
	m := &argumentMapping{params: make([]int, len(args))}
	assigned := make([]bool, len(sig.Params))

	next := 0
	seenNamed := false
	for i, arg := range args {
		if arg.Name != "" {
			seenNamed = true
			p := sig.ParamByName(arg.Name)
			if p < 0 {
				return nil, fmt.Errorf("no parameter named %s", arg.Name)
			}
			if assigned[p] && !sig.Params[p].Vararg {
				return nil, fmt.Errorf("parameter %s already has a value", arg.Name)
			}
			assigned[p] = true
			m.params[i] = p
			if sig.Params[p].Vararg {
				m.varargUsed = true
			}
			continue
		}
		if seenNamed {
			return nil, fmt.Errorf("positional argument #%d after named arguments", i+1)
		}
		if next >= len(sig.Params) {
			return nil, fmt.Errorf("wrong arg count: %d arguments for %d parameters", len(args), len(sig.Params))
		}
		m.params[i] = next
		assigned[next] = true
		if sig.Params[next].Vararg {
			m.varargUsed = true
			continue // Stay on the vararg
		}
		next++
	}

	for p, param := range sig.Params {
		if assigned[p] || param.Vararg {
			continue
		}
		if !param.HasDefault {
			return nil, fmt.Errorf("wrong arg count: no value passed for parameter %s", param.Name)
		}
		m.defaultsUsed++
	}
	return m, nil
}
