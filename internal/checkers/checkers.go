// Package checkers holds the checks that run over resolved calls and
// analyzed declarations once inference is done. The lists are fixed when
// the session is created.
package checkers

import (
	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Context is what a checker may look at besides its subject.
type Context struct {
	Table    *typesystem.ClassTable
	Function *dataflow.Function
}

// CallChecker inspects one successfully resolved call.
type CallChecker interface {
	CheckCall(call *resolver.ResolvedCall, ctx *Context) []*diagnostics.Diagnostic
}

// DeclarationChecker inspects one analyzed function body.
type DeclarationChecker interface {
	CheckDeclaration(fn *dataflow.Function, res *dataflow.FunctionResult, ctx *Context) []*diagnostics.Diagnostic
}

// Checkers is a static set of checks.
type Checkers struct {
	Calls        []CallChecker
	Declarations []DeclarationChecker
}

// Default returns the checks every session runs.
func Default() *Checkers {
	return &Checkers{
		Calls: []CallChecker{
			ImplicitNothingChecker{},
			DeprecationChecker{},
		},
		Declarations: []DeclarationChecker{
			UnusedVariableChecker{},
		},
	}
}

// Run applies every check to res. Calls are visited in position order.
func (c *Checkers) Run(res *dataflow.FunctionResult, ctx *Context) []*diagnostics.Diagnostic {
	var out []*diagnostics.Diagnostic
	for _, call := range sortedCalls(res) {
		if !call.OK() {
			continue
		}
		for _, check := range c.Calls {
			out = append(out, check.CheckCall(call, ctx)...)
		}
	}
	for _, check := range c.Declarations {
		out = append(out, check.CheckDeclaration(res.Function, res, ctx)...)
	}
	return out
}
