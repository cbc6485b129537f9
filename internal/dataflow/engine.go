package dataflow

import (
	"github.com/pkg/errors"

	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Hooks connects the engine to call resolution.
type Hooks interface {
	Contracts
	// ResolveCall resolves one call site. It must be free of side effects:
	// the engine calls it repeatedly while iterating.
	ResolveCall(site *resolver.CallSite) (*resolver.ResolvedCall, error)
}

// Options tune the engine.
type Options struct {
	// IterationBudget bounds the passes over one function body.
	IterationBudget int
}

// Engine analyzes function bodies. It holds no per-function state and may
// be shared between goroutines.
type Engine struct {
	Table   *typesystem.ClassTable
	Options Options
}

// NewEngine creates an engine over the given class table.
func NewEngine(table *typesystem.ClassTable, opts Options) *Engine {
	if opts.IterationBudget <= 0 {
		opts.IterationBudget = config.DefaultIterationBudget
	}
	return &Engine{Table: table, Options: opts}
}

// ExprInfo is the type of an expression at its position.
type ExprInfo struct {
	Declared typesystem.Type
	Narrowed typesystem.Type // Equal to Declared when no smart cast applies
	Stable   bool            // False when a smart cast was refused
}

// FunctionResult is everything learned about one function body.
type FunctionResult struct {
	Function    *Function
	Graph       *Graph
	Calls       map[token.Position]*resolver.ResolvedCall
	Expressions map[token.Position]ExprInfo
	Diagnostics []*diagnostics.Diagnostic
	flows       []*Flow
}

// RecordCall implements resolver.Recorder.
func (r *FunctionResult) RecordCall(call *resolver.ResolvedCall) {
	r.Calls[call.Position] = call
}

// Report implements resolver.Recorder.
func (r *FunctionResult) Report(d *diagnostics.Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// FlowAt returns the state on entry to node n. Nodes that are never
// reached have an unreachable state.
func (r *FunctionResult) FlowAt(n *FlowNode) *Flow {
	if f := r.flows[n.ID]; f != nil {
		return f
	}
	return unreachableFlow()
}

// Analyze lowers fn and runs the analysis to a fixed point, then makes one
// reporting pass over the stable state.
func (e *Engine) Analyze(fn *Function, hooks Hooks) (*FunctionResult, error) {
	g := Build(fn, hooks)
	a := newAnalysis(e, g, hooks)

	for round := 0; ; round++ {
		if round >= e.Options.IterationBudget {
			return nil, errors.Errorf("data flow of %s did not converge after %d passes", fn.Name, round)
		}
		a.changed = false
		for _, n := range a.order {
			if err := a.visit(n); err != nil {
				return nil, errors.Wrapf(err, "analyzing %s", fn.Name)
			}
		}
		if !a.changed {
			break
		}
	}

	a.final = true
	for _, n := range a.order {
		if err := a.visit(n); err != nil {
			return nil, errors.Wrapf(err, "analyzing %s", fn.Name)
		}
	}
	a.reportUnreachable()
	a.result.flows = a.in
	diagnostics.Sort(a.result.Diagnostics)
	return a.result, nil
}

// analysis is the per-function state of one Analyze call.
type analysis struct {
	table *typesystem.ClassTable
	g     *Graph
	hooks Hooks
	order []*FlowNode

	in  []*Flow
	out []*Flow

	exprs     map[Expression]typesystem.Type
	inferred  map[int]typesystem.Type // Types of variables declared without one
	results   map[*LambdaExpr]typesystem.Type
	calls     map[*Call]*resolver.ResolvedCall
	callNodes map[*Call]*FlowNode

	changed bool
	final   bool
	result  *FunctionResult
	uninit  map[int]bool // Variables already reported as uninitialized
}

func newAnalysis(e *Engine, g *Graph, hooks Hooks) *analysis {
	a := &analysis{
		table:     e.Table,
		g:         g,
		hooks:     hooks,
		order:     g.ReversePostorder(),
		in:        make([]*Flow, len(g.Nodes)),
		out:       make([]*Flow, len(g.Nodes)),
		exprs:     make(map[Expression]typesystem.Type),
		inferred:  make(map[int]typesystem.Type),
		results:   make(map[*LambdaExpr]typesystem.Type),
		calls:     make(map[*Call]*resolver.ResolvedCall),
		callNodes: make(map[*Call]*FlowNode),
		uninit:    make(map[int]bool),
		result: &FunctionResult{
			Function:    g.Function,
			Graph:       g,
			Calls:       make(map[token.Position]*resolver.ResolvedCall),
			Expressions: make(map[token.Position]ExprInfo),
		},
	}
	for _, n := range g.Nodes {
		if n.Kind == NodeCall {
			a.callNodes[n.Call] = n
		}
	}
	return a
}

func (a *analysis) visit(n *FlowNode) error {
	in := a.inFlow(n)
	a.in[n.ID] = in

	out := in
	if in.Reachable {
		var err error
		out, err = a.transfer(n, in.Clone())
		if err != nil {
			return err
		}
	}
	if !out.Equal(a.out[n.ID]) {
		a.out[n.ID] = out
		a.changed = true
	}
	return nil
}

func (a *analysis) inFlow(n *FlowNode) *Flow {
	if n == a.g.Entry {
		return NewFlow(true)
	}
	flows := make([]*Flow, 0, len(n.Preds))
	for _, e := range n.Preds {
		if f := a.edgeFlow(e); f != nil {
			flows = append(flows, f)
		}
	}
	return Join(flows...)
}

// edgeFlow is the state leaving e.From along e. Branch edges apply the
// narrowing of their condition.
func (a *analysis) edgeFlow(e *Edge) *Flow {
	f := a.out[e.From.ID]
	if f == nil || !f.Reachable {
		return f
	}
	if e.From.Kind == NodeBranch && (e.Kind == EdgeTrue || e.Kind == EdgeFalse) {
		return a.applyCond(f.Clone(), e.From.Cond, e.Kind == EdgeTrue)
	}
	return f
}

func (a *analysis) setExpr(e Expression, t typesystem.Type) {
	if old, ok := a.exprs[e]; !ok || !typesystem.Equal(old, t) {
		a.exprs[e] = t
		a.changed = true
	}
}

func (a *analysis) setInferred(v *Variable, t typesystem.Type) {
	if old, ok := a.inferred[v.ID]; !ok || !typesystem.Equal(old, t) {
		a.inferred[v.ID] = t
		a.changed = true
	}
}

func (a *analysis) setResult(lam *LambdaExpr, t typesystem.Type) {
	if old, ok := a.results[lam]; !ok || !typesystem.Equal(old, t) {
		a.results[lam] = t
		a.changed = true
	}
}

// typeOf returns the type computed for e so far.
func (a *analysis) typeOf(e Expression) typesystem.Type {
	switch x := e.(type) {
	case nil:
		return typesystem.Unit()
	case *Value:
		if x.Type == nil {
			return typesystem.TError{Reason: "untyped value"}
		}
		return x.Type
	}
	if t, ok := a.exprs[e]; ok {
		return t
	}
	return typesystem.TError{Reason: "not analyzed"}
}

// declType is the declared or inferred type of v.
func (a *analysis) declType(v *Variable) typesystem.Type {
	if v.Type != nil {
		return v.Type
	}
	if t, ok := a.inferred[v.ID]; ok {
		return t
	}
	return typesystem.TError{Reason: "unknown type of " + v.Name}
}

func (a *analysis) report(d *diagnostics.Diagnostic) {
	if a.final {
		a.result.Report(d)
	}
}

func (a *analysis) reachable(n *FlowNode) bool {
	f := a.in[n.ID]
	return f != nil && f.Reachable
}

// reportUnreachable flags the first dead statement after a live one in
// every statement list.
func (a *analysis) reportUnreachable() {
	for _, block := range a.g.Blocks {
		for i := 1; i < len(block); i++ {
			if !a.reachable(block[i]) && a.reachable(block[i-1]) {
				a.result.Report(diagnostics.NewWarning(diagnostics.UnreachableCode, block[i].Position, "unreachable code"))
			}
		}
	}
}
