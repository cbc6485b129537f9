package program

import (
	"fmt"
	"strings"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// bodyConverter converts statements, expressions and conditions. Types in
// a body may mention the type parameters of the enclosing declaration.
type bodyConverter struct {
	*converter
	scope map[string]typesystem.TParam
}

func (b *bodyConverter) typ(text, where string) (typesystem.Type, error) {
	if text == "" {
		return nil, nil
	}
	return b.parseType(text, b.scope, where)
}

func (b *bodyConverter) block(docs []StmtDoc, parent token.Position, where string) ([]dataflow.Statement, error) {
	out := make([]dataflow.Statement, 0, len(docs))
	for i := range docs {
		s, err := b.stmt(&docs[i], parent, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *bodyConverter) stmt(d *StmtDoc, parent token.Position, where string) (dataflow.Statement, error) {
	pos, err := b.position(d.At, parent, where)
	if err != nil {
		return nil, err
	}

	var kinds []string
	for _, k := range []struct {
		set  bool
		name string
	}{
		{d.Val != "", "val"},
		{d.Var != "", "var"},
		{d.Assign != "", "assign"},
		{d.Expr != nil, "expr"},
		{d.If != nil, "if"},
		{d.While != nil, "while"},
		{d.DoWhile != nil, "do_while"},
		{d.Break, "break"},
		{d.Continue, "continue"},
		{d.Return != nil, "return"},
		{d.Throw != nil, "throw"},
	} {
		if k.set {
			kinds = append(kinds, k.name)
		}
	}
	if len(kinds) != 1 {
		return nil, fmt.Errorf("%s: %s: a statement needs exactly one kind, got [%s]", b.path, where, strings.Join(kinds, ", "))
	}

	switch kinds[0] {
	case "val", "var":
		name := d.Val
		if name == "" {
			name = d.Var
		}
		s := &dataflow.Declare{Position: pos, Name: name, Mutable: d.Var != ""}
		if s.Type, err = b.typ(d.Type, where); err != nil {
			return nil, err
		}
		if s.Init, err = b.optExpr(d.Init, pos, where+": init"); err != nil {
			return nil, err
		}
		if s.Type == nil && s.Init == nil {
			return nil, fmt.Errorf("%s: %s (%s): a declaration needs a type or an initializer", b.path, where, name)
		}
		return s, nil

	case "assign":
		if d.To == nil {
			return nil, fmt.Errorf("%s: %s (%s): assign needs a value under to", b.path, where, d.Assign)
		}
		value, err := b.expr(d.To, pos, where+": to")
		if err != nil {
			return nil, err
		}
		return &dataflow.Assign{Position: pos, Name: d.Assign, Value: value}, nil

	case "expr":
		e, err := b.expr(d.Expr, pos, where+": expr")
		if err != nil {
			return nil, err
		}
		if d.At == "" {
			pos = e.Pos()
		}
		return &dataflow.ExprStmt{Position: pos, Expr: e}, nil

	case "if":
		s := &dataflow.If{Position: pos}
		if s.Cond, err = b.cond(d.If, pos, where+": if"); err != nil {
			return nil, err
		}
		if s.Then, err = b.block(d.Then, pos, where+": then"); err != nil {
			return nil, err
		}
		if s.Else, err = b.block(d.Else, pos, where+": else"); err != nil {
			return nil, err
		}
		return s, nil

	case "while":
		s := &dataflow.While{Position: pos}
		if s.Cond, err = b.cond(d.While, pos, where+": while"); err != nil {
			return nil, err
		}
		if s.Body, err = b.block(d.Body, pos, where+": body"); err != nil {
			return nil, err
		}
		return s, nil

	case "do_while":
		s := &dataflow.DoWhile{Position: pos}
		if s.Body, err = b.block(d.Body, pos, where+": body"); err != nil {
			return nil, err
		}
		if s.Cond, err = b.cond(d.DoWhile, pos, where+": do_while"); err != nil {
			return nil, err
		}
		return s, nil

	case "break":
		return &dataflow.Break{Position: pos}, nil

	case "continue":
		return &dataflow.Continue{Position: pos}, nil

	case "return":
		s := &dataflow.Return{Position: pos}
		if !d.Return.empty() {
			if s.Value, err = b.expr(d.Return, pos, where+": return"); err != nil {
				return nil, err
			}
		}
		return s, nil

	default: // throw
		value, err := b.expr(d.Throw, pos, where+": throw")
		if err != nil {
			return nil, err
		}
		return &dataflow.Throw{Position: pos, Value: value}, nil
	}
}

// empty reports whether no expression kind is set, as in "return: {}".
func (d *ExprDoc) empty() bool {
	return d.Value == "" && d.Ref == "" && d.Call == "" && d.Lambda == nil
}

func (b *bodyConverter) optExpr(d *ExprDoc, parent token.Position, where string) (dataflow.Expression, error) {
	if d == nil {
		return nil, nil
	}
	return b.expr(d, parent, where)
}

func (b *bodyConverter) expr(d *ExprDoc, parent token.Position, where string) (dataflow.Expression, error) {
	pos, err := b.position(d.At, parent, where)
	if err != nil {
		return nil, err
	}

	set := 0
	for _, ok := range []bool{d.Value != "", d.Ref != "", d.Call != "", d.Lambda != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%s: %s: an expression needs exactly one of value, ref, call or lambda", b.path, where)
	}

	switch {
	case d.Value != "":
		t, err := b.typ(d.Value, where)
		if err != nil {
			return nil, err
		}
		return &dataflow.Value{Position: pos, Type: t}, nil

	case d.Ref != "":
		if err := b.claim(pos, where); err != nil {
			return nil, err
		}
		ref := &dataflow.VarRef{Position: pos, Name: d.Ref}
		if ref.Required, err = b.typ(d.Required, where+": required"); err != nil {
			return nil, err
		}
		return ref, nil

	case d.Call != "":
		return b.call(d, pos, where)

	default:
		return b.lambda(d.Lambda, pos, where+": lambda")
	}
}

func (b *bodyConverter) call(d *ExprDoc, pos token.Position, where string) (*dataflow.Call, error) {
	if err := b.claim(pos, where); err != nil {
		return nil, err
	}
	c := &dataflow.Call{Position: pos, Name: d.Call}
	var err error
	if d.Receiver != nil {
		if c.Receiver, err = b.expr(d.Receiver, pos, where+": receiver"); err != nil {
			return nil, err
		}
	}
	for i := range d.Args {
		a := &d.Args[i]
		value, err := b.expr(&a.ExprDoc, pos, fmt.Sprintf("%s: args[%d]", where, i))
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, dataflow.Argument{Name: a.Name, Value: value})
	}
	if c.Expected, err = b.typ(d.Expected, where+": expected"); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *bodyConverter) lambda(d *LambdaDoc, pos token.Position, where string) (*dataflow.LambdaExpr, error) {
	lam := &dataflow.LambdaExpr{Position: pos}
	for i, p := range d.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: %s: params[%d]: name is required", b.path, where, i)
		}
		t, err := b.typ(p.Type, fmt.Sprintf("%s: params[%d]", where, i))
		if err != nil {
			return nil, err
		}
		lam.Params = append(lam.Params, dataflow.LambdaParam{Name: p.Name, Type: t})
	}
	var err error
	if lam.Body, err = b.block(d.Body, pos, where+": body"); err != nil {
		return nil, err
	}
	if lam.Result, err = b.optExpr(d.Result, pos, where+": result"); err != nil {
		return nil, err
	}
	return lam, nil
}

func (b *bodyConverter) cond(d *CondDoc, parent token.Position, where string) (dataflow.Condition, error) {
	pos, err := b.position(d.At, parent, where)
	if err != nil {
		return nil, err
	}

	switch {
	case d.Is != "" || d.IsNot != "":
		if d.Type == "" {
			return nil, fmt.Errorf("%s: %s: a type check needs a type", b.path, where)
		}
		t, err := b.typ(d.Type, where)
		if err != nil {
			return nil, err
		}
		if d.Is != "" {
			return &dataflow.Is{Position: pos, Var: d.Is, Type: t}, nil
		}
		return &dataflow.IsNot{Position: pos, Var: d.IsNot, Type: t}, nil

	case d.NotNull != "":
		return &dataflow.NotNull{Position: pos, Var: d.NotNull}, nil

	case d.IsNull != "":
		return &dataflow.IsNull{Position: pos, Var: d.IsNull}, nil

	case len(d.And) > 0:
		return b.chain(d.And, pos, where+": and", func(l, r dataflow.Condition) dataflow.Condition {
			return &dataflow.And{Position: pos, Left: l, Right: r}
		})

	case len(d.Or) > 0:
		return b.chain(d.Or, pos, where+": or", func(l, r dataflow.Condition) dataflow.Condition {
			return &dataflow.Or{Position: pos, Left: l, Right: r}
		})

	case d.Not != nil:
		inner, err := b.cond(d.Not, pos, where+": not")
		if err != nil {
			return nil, err
		}
		return &dataflow.Not{Position: pos, Cond: inner}, nil

	case d.Opaque != nil:
		e, err := b.expr(d.Opaque, pos, where+": opaque")
		if err != nil {
			return nil, err
		}
		return &dataflow.Opaque{Position: pos, Expr: e}, nil

	case d.Call != "":
		c, err := b.call(&d.ExprDoc, pos, where)
		if err != nil {
			return nil, err
		}
		return &dataflow.CallCond{Call: c}, nil
	}
	return nil, fmt.Errorf("%s: %s: empty condition", b.path, where)
}

// chain folds two or more conditions to the left.
func (b *bodyConverter) chain(docs []CondDoc, pos token.Position, where string, join func(l, r dataflow.Condition) dataflow.Condition) (dataflow.Condition, error) {
	if len(docs) < 2 {
		return nil, fmt.Errorf("%s: %s: needs at least two conditions", b.path, where)
	}
	var out dataflow.Condition
	for i := range docs {
		c, err := b.cond(&docs[i], pos, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = c
		} else {
			out = join(out, c)
		}
	}
	return out, nil
}
