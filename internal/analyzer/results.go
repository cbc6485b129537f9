package analyzer

import (
	"sort"

	"github.com/google/uuid"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Results holds everything a session learned, keyed by source position.
// It is not modified after Analyze returns.
type Results struct {
	SessionID uuid.UUID

	calls       map[token.Position]*resolver.ResolvedCall
	exprs       map[token.Position]dataflow.ExprInfo
	diagnostics []*diagnostics.Diagnostic
	functions   []*dataflow.FunctionResult
	failures    []*Failure
}

// Expression is the type information recorded at one position.
type Expression struct {
	Position token.Position
	dataflow.ExprInfo
}

func newResults(id uuid.UUID, diags []*diagnostics.Diagnostic) *Results {
	return &Results{
		SessionID:   id,
		calls:       make(map[token.Position]*resolver.ResolvedCall),
		exprs:       make(map[token.Position]dataflow.ExprInfo),
		diagnostics: diags,
	}
}

func (r *Results) add(fr *dataflow.FunctionResult) {
	r.functions = append(r.functions, fr)
	for pos, call := range fr.Calls {
		r.calls[pos] = call
	}
	for pos, info := range fr.Expressions {
		r.exprs[pos] = info
	}
}

// CallAt returns the call resolved at pos.
func (r *Results) CallAt(pos token.Position) (*resolver.ResolvedCall, bool) {
	call, ok := r.calls[pos]
	return call, ok
}

// ExprAt returns the declared and narrowed types recorded at pos.
func (r *Results) ExprAt(pos token.Position) (dataflow.ExprInfo, bool) {
	info, ok := r.exprs[pos]
	return info, ok
}

// TypeAt returns the type of the expression at pos after smart casts.
func (r *Results) TypeAt(pos token.Position) (typesystem.Type, bool) {
	info, ok := r.exprs[pos]
	if !ok {
		return nil, false
	}
	return info.Narrowed, true
}

// Calls returns the resolved calls in position order.
func (r *Results) Calls() []*resolver.ResolvedCall {
	out := make([]*resolver.ResolvedCall, 0, len(r.calls))
	for _, call := range r.calls {
		out = append(out, call)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position.Less(out[j].Position) })
	return out
}

// Expressions returns the recorded expression types in position order.
func (r *Results) Expressions() []Expression {
	out := make([]Expression, 0, len(r.exprs))
	for pos, info := range r.exprs {
		out = append(out, Expression{Position: pos, ExprInfo: info})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position.Less(out[j].Position) })
	return out
}

// Diagnostics returns every diagnostic sorted by position.
func (r *Results) Diagnostics() []*diagnostics.Diagnostic {
	return r.diagnostics
}

// Functions returns the per-function results in declaration order.
func (r *Results) Functions() []*dataflow.FunctionResult {
	return r.functions
}

// Failures returns the functions whose analysis stopped on an internal error.
func (r *Results) Failures() []*Failure {
	return r.failures
}

// HasErrors reports whether an error diagnostic was reported or a function
// failed.
func (r *Results) HasErrors() bool {
	if len(r.failures) > 0 {
		return true
	}
	for _, d := range r.diagnostics {
		if d.IsError() {
			return true
		}
	}
	return false
}
