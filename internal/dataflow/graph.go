package dataflow

import (
	"fmt"
	"strings"

	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// NodeKind is the instruction of a control-flow node.
type NodeKind int

const (
	NodeEnter NodeKind = iota
	NodeExit
	NodeStatement // Marks the start of a statement
	NodeDeclare
	NodeAssign
	NodeRead
	NodeCall
	NodeLambdaEnter
	NodeLambdaExit
	NodeBranch
	NodeMerge
	NodeJump
	NodeReturn
	NodeThrow
)

var nodeKindNames = [...]string{
	NodeEnter:       "enter",
	NodeExit:        "exit",
	NodeStatement:   "stmt",
	NodeDeclare:     "declare",
	NodeAssign:      "assign",
	NodeRead:        "read",
	NodeCall:        "call",
	NodeLambdaEnter: "lambda-enter",
	NodeLambdaExit:  "lambda-exit",
	NodeBranch:      "branch",
	NodeMerge:       "merge",
	NodeJump:        "jump",
	NodeReturn:      "return",
	NodeThrow:       "throw",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// EdgeKind tells how control reaches the target of an edge.
type EdgeKind int

const (
	EdgeNormal EdgeKind = iota
	EdgeTrue            // Condition held
	EdgeFalse           // Condition failed
	EdgeBack            // Loop or repeated lambda invocation
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeTrue:
		return "true"
	case EdgeFalse:
		return "false"
	case EdgeBack:
		return "back"
	default:
		return "normal"
	}
}

// Edge connects two nodes.
type Edge struct {
	From, To *FlowNode
	Kind     EdgeKind
}

// Variable is a local or parameter of the analyzed body. Shadowed names get
// distinct variables.
type Variable struct {
	ID       int
	Name     string
	Type     typesystem.Type // Declared type; nil when inferred from the initializer
	Mutable  bool
	Param    bool
	Depth    int // Lambda nesting depth of the declaration
	Position token.Position
	Reads    int
	// CapturedWrite is set for mutable variables assigned inside a lambda.
	CapturedWrite bool
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s#%d", v.Name, v.ID)
}

// FlowNode is one instruction of the control-flow graph.
type FlowNode struct {
	ID       int
	Kind     NodeKind
	Position token.Position

	Name string     // Variable name of declare, assign and read nodes
	Var  *Variable  // nil when Name does not resolve
	Expr Expression // read: the reference; call: the call; others: the value
	Cond Condition  // branch

	// Lambda nodes point back at the call receiving the lambda.
	Lambda     *LambdaExpr
	Call       *Call
	ArgIndex   int
	Invocation symbols.InvocationKind

	// Expected type of the value of a call, declare or assign node.
	Expected typesystem.Type

	// Frames lists the invocation kinds of the lambdas enclosing the node,
	// outermost first. len(Frames) is the nesting depth.
	Frames []symbols.InvocationKind

	Succs []*Edge
	Preds []*Edge
}

// Depth is the lambda nesting depth of the node.
func (n *FlowNode) Depth() int {
	return len(n.Frames)
}

func (n *FlowNode) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "n%d %s", n.ID, n.Kind)
	if n.Name != "" {
		sb.WriteString(" " + n.Name)
	}
	if n.Kind == NodeCall {
		sb.WriteString(" " + n.Expr.(*Call).Name)
	}
	if n.Kind == NodeLambdaEnter || n.Kind == NodeLambdaExit {
		sb.WriteString(" " + n.Invocation.String())
	}
	return sb.String()
}

// Graph is the control-flow graph of one function body.
type Graph struct {
	Function  *Function
	Nodes     []*FlowNode
	Entry     *FlowNode
	Exit      *FlowNode
	Variables []*Variable
	// Refs resolves variable references to their declarations.
	Refs map[*VarRef]*Variable
	// CondVars resolves the variable tested by Is, IsNot, NotNull and IsNull.
	CondVars map[Condition]*Variable
	// LambdaParams holds the parameter variables of every lambda.
	LambdaParams map[*LambdaExpr][]*Variable
	// Blocks holds the statement markers of every statement list.
	Blocks [][]*FlowNode
}

func (g *Graph) newNode(kind NodeKind, pos token.Position) *FlowNode {
	n := &FlowNode{ID: len(g.Nodes), Kind: kind, Position: pos}
	g.Nodes = append(g.Nodes, n)
	return n
}

func (g *Graph) connect(from, to *FlowNode, kind EdgeKind) {
	e := &Edge{From: from, To: to, Kind: kind}
	from.Succs = append(from.Succs, e)
	to.Preds = append(to.Preds, e)
}

// ReversePostorder returns the nodes reachable from the entry in reverse
// postorder. Nodes that only dead code leads to are left out.
func (g *Graph) ReversePostorder() []*FlowNode {
	visited := make([]bool, len(g.Nodes))
	var post []*FlowNode
	var visit func(n *FlowNode)
	visit = func(n *FlowNode) {
		visited[n.ID] = true
		for _, e := range n.Succs {
			if !visited[e.To.ID] {
				visit(e.To)
			}
		}
		post = append(post, n)
	}
	visit(g.Entry)

	out := make([]*FlowNode, len(post))
	for i, n := range post {
		out[len(post)-1-i] = n
	}
	return out
}

// String dumps the graph one node per line with its successors.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, n := range g.Nodes {
		sb.WriteString(n.String())
		if len(n.Succs) > 0 {
			sb.WriteString(" ->")
			for _, e := range n.Succs {
				if e.Kind == EdgeNormal {
					fmt.Fprintf(&sb, " n%d", e.To.ID)
				} else {
					fmt.Fprintf(&sb, " n%d(%s)", e.To.ID, e.Kind)
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
