// Package dataflow builds control-flow graphs for function bodies and runs
// the smart-cast and definite-initialization analysis over them.
package dataflow

import (
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Node is the base interface for all body IR nodes.
type Node interface {
	Pos() token.Position
}

// Statement is a Node executed for its effect.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Condition is a Node used as a branch condition.
type Condition interface {
	Node
	conditionNode()
}

// Parameter is a function parameter.
type Parameter struct {
	Name     string
	Type     typesystem.Type
	Position token.Position
}

// Function is one analyzed function body.
type Function struct {
	Name     string
	Package  string
	Position token.Position
	Params   []Parameter
	Returns  typesystem.Type // nil means Unit
	Body     []Statement
}

// Declare introduces a local. val x: T = init; var y; ...
type Declare struct {
	Position token.Position
	Name     string
	Type     typesystem.Type // Optional; inferred from Init when nil
	Mutable  bool
	Init     Expression // Optional
}

// Assign writes a local. x = value
type Assign struct {
	Position token.Position
	Name     string
	Value    Expression
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	Position token.Position
	Expr     Expression
}

// If branches on a condition. Else may be empty.
type If struct {
	Position token.Position
	Cond     Condition
	Then     []Statement
	Else     []Statement
}

// While is a pre-checked loop.
type While struct {
	Position token.Position
	Cond     Condition
	Body     []Statement
}

// DoWhile is a post-checked loop.
type DoWhile struct {
	Position token.Position
	Body     []Statement
	Cond     Condition
}

type Break struct {
	Position token.Position
}

type Continue struct {
	Position token.Position
}

// Return leaves the enclosing function or lambda. Value is optional.
type Return struct {
	Position token.Position
	Value    Expression
}

// Throw leaves the function abruptly.
type Throw struct {
	Position token.Position
	Value    Expression
}

func (s *Declare) Pos() token.Position  { return s.Position }
func (s *Assign) Pos() token.Position   { return s.Position }
func (s *ExprStmt) Pos() token.Position { return s.Position }
func (s *If) Pos() token.Position       { return s.Position }
func (s *While) Pos() token.Position    { return s.Position }
func (s *DoWhile) Pos() token.Position  { return s.Position }
func (s *Break) Pos() token.Position    { return s.Position }
func (s *Continue) Pos() token.Position { return s.Position }
func (s *Return) Pos() token.Position   { return s.Position }
func (s *Throw) Pos() token.Position    { return s.Position }

func (s *Declare) statementNode()  {}
func (s *Assign) statementNode()   {}
func (s *ExprStmt) statementNode() {}
func (s *If) statementNode()       {}
func (s *While) statementNode()    {}
func (s *DoWhile) statementNode()  {}
func (s *Break) statementNode()    {}
func (s *Continue) statementNode() {}
func (s *Return) statementNode()   {}
func (s *Throw) statementNode()    {}

// Value is an expression whose type is known up front (a literal, a field
// access the front end already typed, ...).
type Value struct {
	Position token.Position
	Type     typesystem.Type
}

// VarRef reads a local or parameter. Required is the type the use site
// needs, if any (the receiver type of a member access, say).
type VarRef struct {
	Position token.Position
	Name     string
	Required typesystem.Type
}

// Argument is one call argument; Name is set for named arguments.
type Argument struct {
	Name  string
	Value Expression
}

// Call invokes a function. Receiver is set for extension calls.
type Call struct {
	Position token.Position
	Receiver Expression
	Name     string
	Args     []Argument
	Expected typesystem.Type // Optional expected result type
}

// LambdaParam is a lambda parameter; a nil Type is implicit.
type LambdaParam struct {
	Name string
	Type typesystem.Type
}

// LambdaExpr is a lambda literal. Result is the value of its last
// expression; nil means Unit.
type LambdaExpr struct {
	Position token.Position
	Params   []LambdaParam
	Body     []Statement
	Result   Expression
}

func (e *Value) Pos() token.Position      { return e.Position }
func (e *VarRef) Pos() token.Position     { return e.Position }
func (e *Call) Pos() token.Position       { return e.Position }
func (e *LambdaExpr) Pos() token.Position { return e.Position }

func (e *Value) expressionNode()      {}
func (e *VarRef) expressionNode()     {}
func (e *Call) expressionNode()       {}
func (e *LambdaExpr) expressionNode() {}

// Is checks x is T.
type Is struct {
	Position token.Position
	Var      string
	Type     typesystem.Type
}

// IsNot checks x !is T.
type IsNot struct {
	Position token.Position
	Var      string
	Type     typesystem.Type
}

// NotNull checks x != null.
type NotNull struct {
	Position token.Position
	Var      string
}

// IsNull checks x == null.
type IsNull struct {
	Position token.Position
	Var      string
}

type And struct {
	Position    token.Position
	Left, Right Condition
}

type Or struct {
	Position    token.Position
	Left, Right Condition
}

type Not struct {
	Position token.Position
	Cond     Condition
}

// Opaque is a condition the analysis learns nothing from. Expr, if set,
// is evaluated before branching.
type Opaque struct {
	Position token.Position
	Expr     Expression
}

// CallCond branches on the Boolean result of a call, so returns(true) and
// returns(false) effects of the callee apply.
type CallCond struct {
	Call *Call
}

func (c *Is) Pos() token.Position       { return c.Position }
func (c *IsNot) Pos() token.Position    { return c.Position }
func (c *NotNull) Pos() token.Position  { return c.Position }
func (c *IsNull) Pos() token.Position   { return c.Position }
func (c *And) Pos() token.Position      { return c.Position }
func (c *Or) Pos() token.Position       { return c.Position }
func (c *Not) Pos() token.Position      { return c.Position }
func (c *Opaque) Pos() token.Position   { return c.Position }
func (c *CallCond) Pos() token.Position { return c.Call.Position }

func (c *Is) conditionNode()       {}
func (c *IsNot) conditionNode()    {}
func (c *NotNull) conditionNode()  {}
func (c *IsNull) conditionNode()   {}
func (c *And) conditionNode()      {}
func (c *Or) conditionNode()       {}
func (c *Not) conditionNode()      {}
func (c *Opaque) conditionNode()   {}
func (c *CallCond) conditionNode() {}
