package program

import (
	"fmt"
	"strings"

	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// converter turns a validated document into the analysis inputs. Errors
// name the offending node by its path in the document.
type converter struct {
	path  string
	table *typesystem.ClassTable
	// owners counts declarations per name so that overloads get distinct
	// type parameter owners.
	owners map[string]int
	// exprs maps the position of every call and variable reference to the
	// node that has it. Results are keyed by position, so two such
	// expressions may not share one.
	exprs map[token.Position]string
}

func convert(doc *Document, path string) (*Program, error) {
	c := &converter{path: path, table: typesystem.NewClassTable(), owners: make(map[string]int), exprs: make(map[token.Position]string)}

	if err := c.declareClasses(doc.Classes); err != nil {
		return nil, err
	}

	external := make(map[string][]*symbols.Signature)
	for i, p := range doc.Packages {
		for j, f := range p.Functions {
			sig, _, err := c.signature(p.Name, f, fmt.Sprintf("packages[%d].functions[%d]", i, j))
			if err != nil {
				return nil, err
			}
			external[p.Name] = append(external[p.Name], sig)
		}
	}

	// Default imports are the outermost scope, the package scope the innermost.
	scope := symbols.NewSymbolTable(symbols.ScopeDefaultImport, DefaultImportPrefix)
	for _, p := range doc.Packages {
		if p.Name == DefaultImportPrefix || strings.HasPrefix(p.Name, DefaultImportPrefix+".") {
			for _, sig := range external[p.Name] {
				scope.Define(sig)
			}
		}
	}
	for _, imp := range doc.Imports {
		pkg, name, _ := splitImport(imp)
		if name != "*" {
			continue
		}
		scope = symbols.NewEnclosedSymbolTable(scope, symbols.ScopeStarImport, pkg)
		for _, sig := range external[pkg] {
			scope.Define(sig)
		}
	}
	for _, imp := range doc.Imports {
		pkg, name, _ := splitImport(imp)
		if name == "*" {
			continue
		}
		scope = symbols.NewEnclosedSymbolTable(scope, symbols.ScopeExplicitImport, pkg)
		found := false
		for _, sig := range external[pkg] {
			if sig.Name == name {
				scope.Define(sig)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: import %s: package %s declares no %s", c.path, imp, pkg, name)
		}
	}
	scope = symbols.NewEnclosedSymbolTable(scope, symbols.ScopePackage, doc.Package)

	prog := &Program{Path: path, Package: doc.Package, Table: c.table}
	for i, f := range doc.Functions {
		where := fmt.Sprintf("functions[%d] (%s)", i, f.Name)
		sig, scopeParams, err := c.signature(doc.Package, f, where)
		if err != nil {
			return nil, err
		}
		scope.Define(sig)
		if len(f.Body) == 0 {
			continue
		}
		fn, err := c.function(doc.Package, f, sig, scopeParams, where)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	prog.Scope = scope
	return prog, nil
}

func (c *converter) declareClasses(classes []ClassDoc) error {
	decls := make([]typesystem.ClassDecl, len(classes))
	for i, cd := range classes {
		decl := typesystem.ClassDecl{Name: cd.Name}
		switch cd.Kind {
		case "", "class":
			decl.Kind = typesystem.KindClass
		case "interface":
			decl.Kind = typesystem.KindInterface
		case "final":
			decl.Kind = typesystem.KindFinal
		default:
			return fmt.Errorf("%s: classes[%d] (%s): unknown kind %q", c.path, i, cd.Name, cd.Kind)
		}
		for _, p := range cd.Params {
			pd := typesystem.ParamDecl{Name: p}
			if rest, ok := strings.CutPrefix(p, "out "); ok {
				pd = typesystem.ParamDecl{Name: strings.TrimSpace(rest), Variance: typesystem.Covariant}
			} else if rest, ok := strings.CutPrefix(p, "in "); ok {
				pd = typesystem.ParamDecl{Name: strings.TrimSpace(rest), Variance: typesystem.Contravariant}
			}
			decl.Params = append(decl.Params, pd)
		}
		decls[i] = decl
		c.table.Declare(decl)
	}

	// Supertypes may refer to classes declared later in the list.
	for i, cd := range classes {
		scope := make(map[string]typesystem.TParam, len(decls[i].Params))
		for _, p := range decls[i].Params {
			scope[p.Name] = typesystem.TParam{Owner: cd.Name, Name: p.Name}
		}
		for _, text := range cd.Supertypes {
			t, err := typesystem.ParseType(text, scope)
			if err != nil {
				return fmt.Errorf("%s: classes[%d] (%s): supertype: %w", c.path, i, cd.Name, err)
			}
			con, ok := t.(typesystem.TCon)
			if !ok || con.Nullable {
				return fmt.Errorf("%s: classes[%d] (%s): supertype %s is not a class type", c.path, i, cd.Name, text)
			}
			decls[i].Supertypes = append(decls[i].Supertypes, con)
		}
		c.table.Declare(decls[i])
	}

	for i, cd := range classes {
		for _, st := range decls[i].Supertypes {
			if err := c.table.Validate(st); err != nil {
				return fmt.Errorf("%s: classes[%d] (%s): %w", c.path, i, cd.Name, err)
			}
		}
	}
	return nil
}

// signature converts a declaration. It also returns the type parameter
// scope the declaration's body sees.
func (c *converter) signature(pkg string, f FuncDoc, where string) (*symbols.Signature, map[string]typesystem.TParam, error) {
	c.owners[pkg+"."+f.Name]++
	owner := fmt.Sprintf("%s.%s#%d", pkg, f.Name, c.owners[pkg+"."+f.Name])

	sig := &symbols.Signature{Name: f.Name, Package: pkg, Deprecated: f.Deprecated}
	scope := make(map[string]typesystem.TParam, len(f.TypeParams))
	bounds := make([]string, len(f.TypeParams))
	for i, text := range f.TypeParams {
		name, bound, _ := strings.Cut(text, ":")
		tp := typesystem.TParam{Owner: owner, Name: strings.TrimSpace(name)}
		if tp.Name == "" {
			return nil, nil, fmt.Errorf("%s: %s: type_params[%d] has no name", c.path, where, i)
		}
		scope[tp.Name] = tp
		sig.TypeParams = append(sig.TypeParams, tp)
		bounds[i] = strings.TrimSpace(bound)
	}
	for i, b := range bounds {
		if b == "" {
			continue
		}
		t, err := c.parseType(b, scope, fmt.Sprintf("%s: bound of %s", where, sig.TypeParams[i].Name))
		if err != nil {
			return nil, nil, err
		}
		sig.TypeParams[i].Bound = t
		scope[sig.TypeParams[i].Name] = sig.TypeParams[i]
	}

	var err error
	if f.Receiver != "" {
		if sig.Receiver, err = c.parseType(f.Receiver, scope, where+": receiver"); err != nil {
			return nil, nil, err
		}
	}
	for i, pd := range f.Params {
		p, err := c.param(pd, scope, fmt.Sprintf("%s: params[%d]", where, i))
		if err != nil {
			return nil, nil, err
		}
		sig.Params = append(sig.Params, p)
	}
	if f.Returns != "" {
		if sig.Returns, err = c.parseType(f.Returns, scope, where+": returns"); err != nil {
			return nil, nil, err
		}
	}
	for i, ed := range f.Effects {
		e, err := c.effect(sig, ed, scope, fmt.Sprintf("%s: effects[%d]", where, i))
		if err != nil {
			return nil, nil, err
		}
		sig.Effects = append(sig.Effects, e)
	}
	return sig, scope, nil
}

func (c *converter) param(pd ParamDoc, scope map[string]typesystem.TParam, where string) (symbols.Param, error) {
	if pd.Name == "" {
		return symbols.Param{}, fmt.Errorf("%s: %s: name is required", c.path, where)
	}
	if pd.Type == "" {
		return symbols.Param{}, fmt.Errorf("%s: %s (%s): type is required", c.path, where, pd.Name)
	}
	t, err := c.parseType(pd.Type, scope, where)
	if err != nil {
		return symbols.Param{}, err
	}
	p := symbols.Param{Name: pd.Name, Type: t, HasDefault: pd.Default, Vararg: pd.Vararg}
	if pd.Invocation != "" {
		if p.Invocation, err = symbols.ParseInvocationKind(pd.Invocation); err != nil {
			return symbols.Param{}, fmt.Errorf("%s: %s (%s): %w", c.path, where, pd.Name, err)
		}
	}
	return p, nil
}

func (c *converter) effect(sig *symbols.Signature, ed EffectDoc, scope map[string]typesystem.TParam, where string) (symbols.Effect, error) {
	var e symbols.Effect
	switch strings.ReplaceAll(ed.When, " ", "") {
	case "returns", "returns()":
		e.Condition = symbols.Returns
	case "returns(true)":
		e.Condition = symbols.ReturnsTrue
	case "returns(false)":
		e.Condition = symbols.ReturnsFalse
	default:
		return e, fmt.Errorf("%s: %s: unknown condition %q", c.path, where, ed.When)
	}

	if ed.Param == "this" {
		if sig.Receiver == nil {
			return e, fmt.Errorf("%s: %s: %s has no receiver", c.path, where, sig.Name)
		}
		e.Param = symbols.ReceiverIndex
	} else if e.Param = sig.ParamByName(ed.Param); e.Param < 0 {
		return e, fmt.Errorf("%s: %s: %s has no parameter %s", c.path, where, sig.Name, ed.Param)
	}

	if ed.Is != "" {
		t, err := c.parseType(ed.Is, scope, where)
		if err != nil {
			return e, err
		}
		e.Type = t
	}
	return e, nil
}

// parseType parses text and checks the classes it names.
func (c *converter) parseType(text string, scope map[string]typesystem.TParam, where string) (typesystem.Type, error) {
	t, err := typesystem.ParseType(text, scope)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", c.path, where, err)
	}
	if err := c.validate(t); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", c.path, where, err)
	}
	return t, nil
}

func (c *converter) validate(t typesystem.Type) error {
	switch x := t.(type) {
	case typesystem.TCon:
		return c.table.Validate(x)
	case typesystem.TIntersection:
		for _, m := range x.Types {
			if err := c.validate(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// claim records pos for the expression at where.
func (c *converter) claim(pos token.Position, where string) error {
	if other, ok := c.exprs[pos]; ok {
		return fmt.Errorf("%s: %s: position %d:%d is already used by %s; give the expression its own at", c.path, where, pos.Line, pos.Column, other)
	}
	c.exprs[pos] = where
	return nil
}

func (c *converter) position(at string, parent token.Position, where string) (token.Position, error) {
	if at == "" {
		return parent, nil
	}
	pos, err := token.ParsePosition(c.path, at)
	if err != nil {
		return token.Position{}, fmt.Errorf("%s: %s: %w", c.path, where, err)
	}
	return pos, nil
}

// function converts the body of a declaration of the analyzed package.
func (c *converter) function(pkg string, f FuncDoc, sig *symbols.Signature, scope map[string]typesystem.TParam, where string) (*dataflow.Function, error) {
	pos, err := c.position(f.At, token.Position{File: c.path, Line: 1, Column: 1}, where)
	if err != nil {
		return nil, err
	}
	fn := &dataflow.Function{Name: f.Name, Package: pkg, Position: pos, Returns: sig.Returns}
	for i, p := range sig.Params {
		ppos, err := c.position(f.Params[i].At, pos, fmt.Sprintf("%s: params[%d]", where, i))
		if err != nil {
			return nil, err
		}
		t := p.Type
		if p.Vararg {
			t = typesystem.Con(config.ListClassName, t)
		}
		fn.Params = append(fn.Params, dataflow.Parameter{Name: p.Name, Type: t, Position: ppos})
	}
	b := &bodyConverter{converter: c, scope: scope}
	if fn.Body, err = b.block(f.Body, pos, where+": body"); err != nil {
		return nil, err
	}
	return fn, nil
}
