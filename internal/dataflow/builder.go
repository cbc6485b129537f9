package dataflow

import (
	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Contracts tells the builder how often the lambda arguments of a call run.
type Contracts interface {
	// InvocationKinds returns one kind per argument of call. Non-lambda
	// arguments and unknown callees get InvocationUnknown.
	InvocationKinds(call *Call) []symbols.InvocationKind
}

// outEdge is an edge waiting for its target: the next emitted node.
type outEdge struct {
	from *FlowNode
	kind EdgeKind
}

type loopFrame struct {
	breaks    []outEdge
	continues []outEdge
}

type lambdaFrame struct {
	kind symbols.InvocationKind
	exit *FlowNode
}

// builder lowers a function body into a graph. Control falls from node to
// node through the pending edges. Code after a jump is still lowered but
// no path from the entry reaches it.
type builder struct {
	g         *Graph
	contracts Contracts
	pending   []outEdge
	scopes    []map[string]*Variable
	loops     []*loopFrame
	lambdas   []*lambdaFrame
}

// Build lowers fn into a control-flow graph. With nil contracts every
// lambda argument is lowered as InvocationUnknown.
//
// Lambda arguments are inlined before the call node. Their shape follows
// the invocation kind: EXACTLY_ONCE runs straight through, AT_MOST_ONCE
// adds an edge around the body, AT_LEAST_ONCE an edge back to its start
// and UNKNOWN both.
func Build(fn *Function, contracts Contracts) *Graph {
	g := &Graph{
		Function:     fn,
		Refs:         make(map[*VarRef]*Variable),
		CondVars:     make(map[Condition]*Variable),
		LambdaParams: make(map[*LambdaExpr][]*Variable),
	}
	b := &builder{g: g, contracts: contracts}

	g.Entry = g.newNode(NodeEnter, fn.Position)
	g.Exit = g.newNode(NodeExit, fn.Position)
	b.pending = []outEdge{{from: g.Entry}}

	b.pushScope()
	for _, p := range fn.Params {
		b.declare(&Variable{Name: p.Name, Type: p.Type, Param: true, Position: p.Position})
	}
	b.lowerBlock(fn.Body)
	b.connectPending(g.Exit)
	b.popScope()
	return g
}

func (b *builder) frames() []symbols.InvocationKind {
	if len(b.lambdas) == 0 {
		return nil
	}
	out := make([]symbols.InvocationKind, len(b.lambdas))
	for i, l := range b.lambdas {
		out[i] = l.kind
	}
	return out
}

// emit appends a node reached by all pending edges.
func (b *builder) emit(kind NodeKind, pos token.Position) *FlowNode {
	n := b.g.newNode(kind, pos)
	n.Frames = b.frames()
	for _, p := range b.pending {
		b.g.connect(p.from, n, p.kind)
	}
	b.pending = []outEdge{{from: n}}
	return n
}

func (b *builder) connectPending(target *FlowNode) {
	b.connectAll(b.pending, target, EdgeNormal)
	b.pending = nil
}

// connectAll links edges to target. Normal edges take kind; edges that
// already carry a branch outcome keep it.
func (b *builder) connectAll(edges []outEdge, target *FlowNode, kind EdgeKind) {
	for _, p := range edges {
		k := p.kind
		if k == EdgeNormal {
			k = kind
		}
		b.g.connect(p.from, target, k)
	}
}

func (b *builder) pushScope() {
	b.scopes = append(b.scopes, make(map[string]*Variable))
}

func (b *builder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

func (b *builder) declare(v *Variable) {
	v.ID = len(b.g.Variables)
	v.Depth = len(b.lambdas)
	b.g.Variables = append(b.g.Variables, v)
	b.scopes[len(b.scopes)-1][v.Name] = v
}

func (b *builder) lookup(name string) *Variable {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v
		}
	}
	return nil
}

func (b *builder) lowerBlock(stmts []Statement) {
	var marks []*FlowNode
	for _, s := range stmts {
		marks = append(marks, b.emit(NodeStatement, s.Pos()))
		b.lowerStmt(s)
	}
	if len(marks) > 0 {
		b.g.Blocks = append(b.g.Blocks, marks)
	}
}

func (b *builder) lowerScoped(stmts []Statement) {
	b.pushScope()
	b.lowerBlock(stmts)
	b.popScope()
}

func (b *builder) lowerStmt(stmt Statement) {
	switch s := stmt.(type) {
	case *Declare:
		b.lowerExpr(s.Init, s.Type)
		v := &Variable{Name: s.Name, Type: s.Type, Mutable: s.Mutable, Position: s.Position}
		n := b.emit(NodeDeclare, s.Position)
		b.declare(v)
		n.Name, n.Var, n.Expr, n.Expected = s.Name, v, s.Init, s.Type

	case *Assign:
		v := b.lookup(s.Name)
		var expected typesystem.Type
		if v != nil {
			expected = v.Type
			if v.Mutable && len(b.lambdas) > v.Depth {
				v.CapturedWrite = true
			}
		}
		b.lowerExpr(s.Value, expected)
		n := b.emit(NodeAssign, s.Position)
		n.Name, n.Var, n.Expr, n.Expected = s.Name, v, s.Value, expected

	case *ExprStmt:
		b.lowerExpr(s.Expr, nil)

	case *If:
		b.lowerCond(s.Cond)
		br := b.emit(NodeBranch, s.Position)
		br.Cond = s.Cond
		b.pending = []outEdge{{from: br, kind: EdgeTrue}}
		b.lowerScoped(s.Then)
		thenOut := b.pending
		b.pending = []outEdge{{from: br, kind: EdgeFalse}}
		b.lowerScoped(s.Else)
		b.pending = append(thenOut, b.pending...)
		if len(b.pending) > 0 {
			b.emit(NodeMerge, s.Position)
		}

	case *While:
		head := b.emit(NodeMerge, s.Position)
		b.lowerCond(s.Cond)
		br := b.emit(NodeBranch, s.Position)
		br.Cond = s.Cond
		loop := &loopFrame{}
		b.loops = append(b.loops, loop)
		b.pending = []outEdge{{from: br, kind: EdgeTrue}}
		b.lowerScoped(s.Body)
		b.connectAll(append(b.pending, loop.continues...), head, EdgeBack)
		b.loops = b.loops[:len(b.loops)-1]
		b.pending = append([]outEdge{{from: br, kind: EdgeFalse}}, loop.breaks...)

	case *DoWhile:
		head := b.emit(NodeMerge, s.Position)
		loop := &loopFrame{}
		b.loops = append(b.loops, loop)
		b.pushScope() // Body locals are visible in the condition
		b.lowerBlock(s.Body)
		b.pending = append(b.pending, loop.continues...)
		b.loops = b.loops[:len(b.loops)-1]
		if len(b.pending) > 0 {
			b.emit(NodeMerge, s.Cond.Pos())
		}
		b.lowerCond(s.Cond)
		b.popScope()
		br := b.emit(NodeBranch, s.Position)
		br.Cond = s.Cond
		b.g.connect(br, head, EdgeTrue)
		b.pending = append([]outEdge{{from: br, kind: EdgeFalse}}, loop.breaks...)

	case *Break:
		b.emit(NodeJump, s.Position)
		if len(b.loops) > 0 {
			loop := b.loops[len(b.loops)-1]
			loop.breaks = append(loop.breaks, b.pending...)
		}
		b.pending = nil

	case *Continue:
		b.emit(NodeJump, s.Position)
		if len(b.loops) > 0 {
			loop := b.loops[len(b.loops)-1]
			loop.continues = append(loop.continues, b.pending...)
		}
		b.pending = nil

	case *Return:
		target := b.g.Exit
		var expected typesystem.Type
		if len(b.lambdas) > 0 {
			target = b.lambdas[len(b.lambdas)-1].exit
		} else {
			expected = b.g.Function.Returns
			if expected == nil {
				expected = typesystem.Unit()
			}
		}
		b.lowerExpr(s.Value, expected)
		n := b.emit(NodeReturn, s.Position)
		n.Expr, n.Expected = s.Value, expected
		b.connectPending(target)

	case *Throw:
		b.lowerExpr(s.Value, nil)
		n := b.emit(NodeThrow, s.Position)
		n.Expr = s.Value
		b.pending = nil
	}
}

func (b *builder) lowerExpr(expr Expression, expected typesystem.Type) {
	switch e := expr.(type) {
	case *VarRef:
		b.lowerRead(e)
	case *Call:
		b.lowerCall(e, expected)
	case *LambdaExpr:
		b.lowerLambda(e, nil, -1, symbols.InvocationUnknown)
	}
}

func (b *builder) lowerRead(ref *VarRef) *Variable {
	v := b.lookup(ref.Name)
	n := b.emit(NodeRead, ref.Position)
	n.Name, n.Var, n.Expr = ref.Name, v, ref
	if v != nil {
		b.g.Refs[ref] = v
		v.Reads++
	}
	return v
}

// lowerCall evaluates the receiver and plain arguments, then runs the
// lambda arguments, then the call itself.
func (b *builder) lowerCall(c *Call, expected typesystem.Type) {
	b.lowerExpr(c.Receiver, nil)

	var kinds []symbols.InvocationKind
	if b.contracts != nil {
		kinds = b.contracts.InvocationKinds(c)
	}
	for _, a := range c.Args {
		if _, ok := a.Value.(*LambdaExpr); !ok {
			b.lowerExpr(a.Value, nil)
		}
	}
	for i, a := range c.Args {
		lam, ok := a.Value.(*LambdaExpr)
		if !ok {
			continue
		}
		kind := symbols.InvocationUnknown
		if i < len(kinds) {
			kind = kinds[i]
		}
		b.lowerLambda(lam, c, i, kind)
	}

	n := b.emit(NodeCall, c.Position)
	n.Expr, n.Call = c, c
	n.Expected = c.Expected
	if n.Expected == nil {
		n.Expected = expected
	}
}

func (b *builder) lowerLambda(lam *LambdaExpr, call *Call, index int, kind symbols.InvocationKind) {
	enter := b.emit(NodeLambdaEnter, lam.Position)
	exit := b.g.newNode(NodeLambdaExit, lam.Position)
	exit.Frames = enter.Frames
	for _, n := range []*FlowNode{enter, exit} {
		n.Lambda, n.Call, n.ArgIndex, n.Invocation = lam, call, index, kind
	}

	b.lambdas = append(b.lambdas, &lambdaFrame{kind: kind, exit: exit})
	b.pushScope()
	params := make([]*Variable, len(lam.Params))
	for i, p := range lam.Params {
		params[i] = &Variable{Name: p.Name, Type: p.Type, Param: true, Position: lam.Position}
		b.declare(params[i])
	}
	b.g.LambdaParams[lam] = params

	b.lowerBlock(lam.Body)
	b.lowerExpr(lam.Result, nil)
	b.popScope()
	b.lambdas = b.lambdas[:len(b.lambdas)-1]

	b.connectPending(exit)
	b.pending = []outEdge{{from: exit}}
	switch kind {
	case symbols.AtMostOnce:
		b.g.connect(enter, exit, EdgeNormal)
	case symbols.AtLeastOnce:
		b.g.connect(exit, enter, EdgeBack)
	case symbols.InvocationUnknown:
		b.g.connect(enter, exit, EdgeNormal)
		b.g.connect(exit, enter, EdgeBack)
	}
}

func (b *builder) lowerCond(cond Condition) {
	switch c := cond.(type) {
	case *Is:
		b.g.CondVars[c] = b.lowerRead(&VarRef{Position: c.Position, Name: c.Var})
	case *IsNot:
		b.g.CondVars[c] = b.lowerRead(&VarRef{Position: c.Position, Name: c.Var})
	case *NotNull:
		b.g.CondVars[c] = b.lowerRead(&VarRef{Position: c.Position, Name: c.Var})
	case *IsNull:
		b.g.CondVars[c] = b.lowerRead(&VarRef{Position: c.Position, Name: c.Var})
	case *And:
		b.lowerCond(c.Left)
		b.lowerCond(c.Right)
	case *Or:
		b.lowerCond(c.Left)
		b.lowerCond(c.Right)
	case *Not:
		b.lowerCond(c.Cond)
	case *Opaque:
		b.lowerExpr(c.Expr, nil)
	case *CallCond:
		b.lowerCall(c.Call, typesystem.Con(config.BooleanClassName))
	}
}
