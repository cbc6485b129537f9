package checkers

import (
	"strings"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
)

// UnusedVariableChecker warns about locals that are never read.
// Parameters and names starting with an underscore are exempt.
type UnusedVariableChecker struct{}

func (UnusedVariableChecker) CheckDeclaration(_ *dataflow.Function, res *dataflow.FunctionResult, _ *Context) []*diagnostics.Diagnostic {
	var out []*diagnostics.Diagnostic
	for _, v := range res.Graph.Variables {
		if v.Param || v.Reads > 0 || strings.HasPrefix(v.Name, "_") {
			continue
		}
		out = append(out, diagnostics.NewWarning(diagnostics.UnusedVariable, v.Position, "variable '%s' is never used", v.Name))
	}
	return out
}
