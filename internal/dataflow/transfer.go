package dataflow

import (
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// transfer computes the state after n from the state before it. flow is a
// private copy and may be modified.
func (a *analysis) transfer(n *FlowNode, flow *Flow) (*Flow, error) {
	switch n.Kind {
	case NodeEnter:
		for _, v := range a.g.Variables[:len(a.g.Function.Params)] {
			flow.setInit(v, Initialized)
		}

	case NodeDeclare:
		a.transferDeclare(n, flow)

	case NodeAssign:
		a.transferAssign(n, flow)

	case NodeRead:
		a.transferRead(n, flow)

	case NodeCall:
		return a.transferCall(n, flow)

	case NodeLambdaEnter:
		if err := a.enterLambda(n, flow); err != nil {
			return nil, err
		}

	case NodeLambdaExit:
		lam := n.Lambda
		result := a.typeOf(lam.Result)
		a.setResult(lam, result)
		params := a.g.LambdaParams[lam]
		types := make([]typesystem.Type, len(params))
		for i, v := range params {
			types[i] = a.declType(v)
		}
		a.setExpr(lam, typesystem.Func(types, result))

	case NodeReturn:
		if n.Expected != nil {
			a.checkType(n.Position, a.typeOf(n.Expr), n.Expected)
		}
	}
	return flow, nil
}

func (a *analysis) transferDeclare(n *FlowNode, flow *Flow) {
	v := n.Var
	if n.Expr == nil {
		if v.Type == nil {
			a.setInferred(v, typesystem.TError{Reason: "no type or initializer for " + v.Name})
		}
		flow.setInit(v, NotInitialized)
		flow.dropFact(v)
		return
	}

	t := a.typeOf(n.Expr)
	if v.Type == nil {
		a.setInferred(v, t)
	} else {
		a.checkType(n.Position, t, v.Type)
	}
	flow.setInit(v, Initialized)
	a.narrowOnAssign(flow, v, t)
}

func (a *analysis) transferAssign(n *FlowNode, flow *Flow) {
	v := n.Var
	if v == nil {
		a.report(diagnostics.NewError(diagnostics.UnresolvedReference, n.Position, "unresolved reference: %s", n.Name))
		return
	}

	if !v.Mutable {
		switch {
		case a.crossesUnknown(n, v):
			a.report(diagnostics.NewError(diagnostics.CapturedValInitialization, n.Position,
				"captured values initialization is forbidden due to possible reassignment: %s", v.Name))
		case flow.Init(v) != NotInitialized:
			a.report(diagnostics.NewError(diagnostics.ValReassignment, n.Position, "val cannot be reassigned: %s", v.Name))
		}
	}

	t := a.typeOf(n.Expr)
	a.checkType(n.Position, t, a.declType(v))
	flow.setInit(v, Initialized)
	a.narrowOnAssign(flow, v, t)
}

func (a *analysis) transferRead(n *FlowNode, flow *Flow) {
	ref := n.Expr.(*VarRef)
	v := n.Var
	if v == nil {
		a.report(diagnostics.NewError(diagnostics.UnresolvedReference, n.Position, "unresolved reference: %s", n.Name))
		a.setExpr(ref, typesystem.TError{Reason: "unresolved " + n.Name})
		return
	}

	if flow.Init(v) != Initialized && a.final && !a.uninit[v.ID] {
		a.uninit[v.ID] = true
		a.report(diagnostics.NewError(diagnostics.UninitializedVariable, n.Position, "variable '%s' must be initialized", v.Name))
	}

	declared := a.declType(v)
	narrowed := declared
	stable := true
	fact, hasFact := flow.Fact(v)
	if hasFact {
		if a.stableAt(n, v, fact) {
			narrowed = fact.Type
		} else {
			stable = false
		}
	}
	a.setExpr(ref, narrowed)
	if !a.final {
		return
	}
	a.result.Expressions[n.Position] = ExprInfo{Declared: declared, Narrowed: narrowed, Stable: stable}

	if ref.Required == nil || hasError(narrowed) || typesystem.IsSubtype(a.table, narrowed, ref.Required) {
		return
	}
	if hasFact && !stable && typesystem.IsSubtype(a.table, fact.Type, ref.Required) {
		a.report(diagnostics.NewError(diagnostics.SmartcastImpossible, n.Position,
			"smart cast to '%s' is impossible, because '%s' is a local variable that is captured by a changing closure",
			ref.Required, v.Name))
		return
	}
	a.report(typeMismatch(n.Position, narrowed, ref.Required))
}

func (a *analysis) transferCall(n *FlowNode, flow *Flow) (*Flow, error) {
	c := n.Call
	call, err := a.hooks.ResolveCall(a.callSite(c, n.Expected, false))
	if err != nil {
		if _, ok := resolver.AsDiagnostic(err); !ok {
			return nil, err
		}
	}
	if call == nil {
		call = &resolver.ResolvedCall{Position: c.Position, Name: c.Name, ReturnType: typesystem.TError{Reason: "unresolved call"}}
	}
	a.calls[c] = call
	a.setExpr(c, call.ReturnType)

	if a.final {
		if err := resolver.Deliver(call, err, a.result); err != nil {
			return nil, err
		}
		a.result.Expressions[n.Position] = ExprInfo{Declared: call.ReturnType, Narrowed: call.ReturnType, Stable: true}
	}
	if !call.OK() {
		return flow, nil
	}

	for _, eff := range call.Candidate.Effects {
		if eff.Condition == symbols.Returns {
			a.applyEffect(flow, c, call, eff)
		}
	}
	if typesystem.IsNothing(call.ReturnType) && !typesystem.IsNullable(call.ReturnType) {
		return unreachableFlow(), nil
	}
	return flow, nil
}

// enterLambda types the lambda parameters. Implicit parameter types come
// from resolving the receiving call before the lambda body is known.
func (a *analysis) enterLambda(n *FlowNode, flow *Flow) error {
	params := a.g.LambdaParams[n.Lambda]

	var inferred []typesystem.Type
	if n.Call != nil && hasImplicit(params) {
		var expected typesystem.Type
		if cn := a.callNodes[n.Call]; cn != nil {
			expected = cn.Expected
		}
		call, err := a.hooks.ResolveCall(a.callSite(n.Call, expected, true))
		switch {
		case err == nil:
			if n.ArgIndex >= 0 && n.ArgIndex < len(call.LambdaParameterTypes) {
				inferred = call.LambdaParameterTypes[n.ArgIndex]
			}
		case !isDiagnostic(err):
			return err
		}
	}

	for i, v := range params {
		if v.Type == nil {
			var t typesystem.Type = typesystem.TError{Reason: "cannot infer a type for parameter " + v.Name}
			if i < len(inferred) && inferred[i] != nil {
				t = inferred[i]
			}
			a.setInferred(v, t)
		}
		flow.setInit(v, Initialized)
		flow.dropFact(v)
	}
	return nil
}

// callSite describes c for the resolver. A pre-resolution leaves the
// lambda results open; it runs before the lambda bodies are analyzed.
func (a *analysis) callSite(c *Call, expected typesystem.Type, pre bool) *resolver.CallSite {
	site := &resolver.CallSite{Position: c.Position, Name: c.Name, Expected: expected}
	if c.Receiver != nil {
		site.Receiver = &resolver.Argument{Type: a.typeOf(c.Receiver), Position: c.Receiver.Pos()}
	}
	site.Args = make([]resolver.Argument, len(c.Args))
	for i, arg := range c.Args {
		ra := resolver.Argument{Name: arg.Name, Position: arg.Value.Pos()}
		if lam, ok := arg.Value.(*LambdaExpr); ok {
			l := &resolver.Lambda{ParamTypes: make([]typesystem.Type, len(lam.Params))}
			for j, p := range lam.Params {
				l.ParamTypes[j] = p.Type
			}
			if !pre {
				l.ReturnType = a.results[lam]
			}
			ra.Lambda = l
		} else {
			ra.Type = a.typeOf(arg.Value)
		}
		site.Args[i] = ra
	}
	return site
}

// applyEffect narrows the variable passed for the parameter named by eff.
func (a *analysis) applyEffect(flow *Flow, c *Call, call *resolver.ResolvedCall, eff symbols.Effect) {
	var expr Expression
	if eff.Param == symbols.ReceiverIndex {
		expr = c.Receiver
	} else {
		for i, p := range call.ArgumentMapping {
			if p == eff.Param {
				expr = c.Args[i].Value
				break
			}
		}
	}
	ref, ok := expr.(*VarRef)
	if !ok {
		return
	}
	v := a.g.Refs[ref]
	if v == nil {
		return
	}
	if eff.Type == nil {
		a.nonNull(flow, v)
		return
	}
	subst := make(typesystem.ParamSubst, len(call.Candidate.TypeParams))
	for _, tp := range call.Candidate.TypeParams {
		subst[tp.Key()] = call.TypeArguments[tp.Name]
	}
	a.narrowTo(flow, v, typesystem.Instantiate(eff.Type, subst))
}

// applyCond returns the state in which cond evaluated to outcome.
func (a *analysis) applyCond(flow *Flow, cond Condition, outcome bool) *Flow {
	switch c := cond.(type) {
	case *Is:
		if outcome {
			a.narrowTo(flow, a.g.CondVars[c], c.Type)
		}
	case *IsNot:
		if !outcome {
			a.narrowTo(flow, a.g.CondVars[c], c.Type)
		}
	case *NotNull:
		if outcome {
			a.nonNull(flow, a.g.CondVars[c])
		}
	case *IsNull:
		if !outcome {
			a.nonNull(flow, a.g.CondVars[c])
		}
	case *Not:
		return a.applyCond(flow, c.Cond, !outcome)
	case *And:
		if outcome {
			return a.applyCond(a.applyCond(flow, c.Left, true), c.Right, true)
		}
		leftFailed := a.applyCond(flow.Clone(), c.Left, false)
		rightFailed := a.applyCond(a.applyCond(flow, c.Left, true), c.Right, false)
		return Join(leftFailed, rightFailed)
	case *Or:
		if !outcome {
			return a.applyCond(a.applyCond(flow, c.Left, false), c.Right, false)
		}
		leftHeld := a.applyCond(flow.Clone(), c.Left, true)
		rightHeld := a.applyCond(a.applyCond(flow, c.Left, false), c.Right, true)
		return Join(leftHeld, rightHeld)
	case *CallCond:
		call := a.calls[c.Call]
		if call == nil || !call.OK() {
			return flow
		}
		for _, eff := range call.Candidate.Effects {
			if (eff.Condition == symbols.ReturnsTrue && outcome) || (eff.Condition == symbols.ReturnsFalse && !outcome) {
				a.applyEffect(flow, c.Call, call, eff)
			}
		}
	}
	return flow
}

// current is the type of v under the facts of flow.
func (a *analysis) current(flow *Flow, v *Variable) typesystem.Type {
	if fact, ok := flow.Fact(v); ok {
		return fact.Type
	}
	return a.declType(v)
}

func (a *analysis) narrowTo(flow *Flow, v *Variable, t typesystem.Type) {
	if v == nil || t == nil {
		return
	}
	narrowed, _ := typesystem.Intersect(a.table, a.current(flow, v), t)
	flow.setFact(v, Fact{Type: narrowed, Stability: a.stability(v)})
}

func (a *analysis) nonNull(flow *Flow, v *Variable) {
	if v == nil {
		return
	}
	flow.setFact(v, Fact{Type: typesystem.MakeNonNull(a.current(flow, v)), Stability: a.stability(v)})
}

// narrowOnAssign records the type of an assigned value when it is more
// precise than the declared type.
func (a *analysis) narrowOnAssign(flow *Flow, v *Variable, t typesystem.Type) {
	if v.Type == nil || hasError(t) || typesystem.Equal(t, v.Type) || !typesystem.IsSubtype(a.table, t, v.Type) {
		flow.dropFact(v)
		return
	}
	flow.setFact(v, Fact{Type: t, Stability: a.stability(v)})
}

// stability is Unstable for variables some lambda writes to: the lambda
// may run between the check and the use.
func (a *analysis) stability(v *Variable) Stability {
	if v.Mutable && v.CapturedWrite {
		return Unstable
	}
	return Stable
}

// stableAt reports whether fact may be used by a read at n. A mutable
// variable read inside a lambda it was declared outside of never is.
func (a *analysis) stableAt(n *FlowNode, v *Variable, fact Fact) bool {
	if fact.Stability == Unstable {
		return false
	}
	return !(v.Mutable && n.Depth() > v.Depth)
}

// crossesUnknown reports whether a write at n to v happens inside a lambda
// of unknown invocation count that v was declared outside of.
func (a *analysis) crossesUnknown(n *FlowNode, v *Variable) bool {
	for i := v.Depth; i < len(n.Frames); i++ {
		if n.Frames[i] == symbols.InvocationUnknown {
			return true
		}
	}
	return false
}

func (a *analysis) checkType(pos token.Position, actual, expected typesystem.Type) {
	if !a.final || expected == nil || hasError(actual) || hasError(expected) {
		return
	}
	if !typesystem.IsSubtype(a.table, actual, expected) {
		a.report(typeMismatch(pos, actual, expected))
	}
}

func typeMismatch(pos token.Position, actual, expected typesystem.Type) *diagnostics.Diagnostic {
	return diagnostics.NewError(diagnostics.TypeMismatch, pos, "type mismatch: inferred type is %s but %s was expected", actual, expected)
}

func hasImplicit(params []*Variable) bool {
	for _, v := range params {
		if v.Type == nil {
			return true
		}
	}
	return false
}

// hasError reports whether t contains an error type anywhere.
func hasError(t typesystem.Type) bool {
	switch x := t.(type) {
	case typesystem.TError:
		return true
	case typesystem.TCon:
		for _, arg := range x.Args {
			if hasError(arg) {
				return true
			}
		}
	case typesystem.TIntersection:
		for _, m := range x.Types {
			if hasError(m) {
				return true
			}
		}
	}
	return false
}

func isDiagnostic(err error) bool {
	_, ok := resolver.AsDiagnostic(err)
	return ok
}
