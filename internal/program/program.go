// Package program loads the typed-call IR that typeinfer analyzes.
//
// A program file is YAML. It declares classes, the functions of external
// packages, the imports of the analyzed package and the analyzed function
// bodies:
//
//	package: main
//	imports: [lib.*, util.format]
//	classes:
//	  - {name: Box, params: [out T], supertypes: [Comparable<Box<T>>]}
//	packages:
//	  - name: lib
//	    functions:
//	      - {name: run, params: [{name: block, type: () -> Unit, invocation: EXACTLY_ONCE}]}
//	functions:
//	  - name: main
//	    at: "1:1"
//	    body:
//	      - {val: x, type: Int}
//	      - expr: {call: run, at: "3:5", args: [{lambda: {body: [{assign: x, to: {value: Int}}]}}]}
//	      - expr: {ref: x, at: "4:5"}
//
// Every node may carry its position as "line:col" under "at"; nodes
// without one inherit the position of the enclosing node.
//
// Inside flow collections ({...} and [...]) a nullable type must be quoted,
// as in {name: x, type: "Int?"}: YAML does not read a plain scalar ending
// in "?" there.
package program

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// DefaultImportPrefix marks packages that are visible without an import.
const DefaultImportPrefix = "kotlin"

// Program is a loaded program ready for analysis.
type Program struct {
	Path    string
	Package string
	Table   *typesystem.ClassTable
	// Scope is the package scope; its outer chain holds the explicit, star
	// and default imports in that order.
	Scope     *symbols.SymbolTable
	Functions []*dataflow.Function
}

// Document is the YAML form of a program.
type Document struct {
	Package   string       `yaml:"package"`
	Imports   []string     `yaml:"imports,omitempty"`
	Classes   []ClassDoc   `yaml:"classes,omitempty"`
	Packages  []PackageDoc `yaml:"packages,omitempty"`
	Functions []FuncDoc    `yaml:"functions,omitempty"`
}

// ClassDoc declares a class. Params are written "T", "out T" or "in T".
type ClassDoc struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind,omitempty"` // class, interface or final
	Params     []string `yaml:"params,omitempty"`
	Supertypes []string `yaml:"supertypes,omitempty"`
}

// PackageDoc holds the declarations of an external package.
type PackageDoc struct {
	Name      string    `yaml:"name"`
	Functions []FuncDoc `yaml:"functions"`
}

// FuncDoc declares a function. Only functions of the analyzed package may
// have a body.
type FuncDoc struct {
	Name string `yaml:"name"`
	At   string `yaml:"at,omitempty"`

	// TypeParams are written "T" or "T: Bound".
	TypeParams []string    `yaml:"type_params,omitempty"`
	Receiver   string      `yaml:"receiver,omitempty"`
	Params     []ParamDoc  `yaml:"params,omitempty"`
	Returns    string      `yaml:"returns,omitempty"`
	Deprecated string      `yaml:"deprecated,omitempty"`
	Effects    []EffectDoc `yaml:"effects,omitempty"`
	Body       []StmtDoc   `yaml:"body,omitempty"`
}

// ParamDoc is a function or lambda parameter.
type ParamDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type,omitempty"`
	Default    bool   `yaml:"default,omitempty"`
	Vararg     bool   `yaml:"vararg,omitempty"`
	Invocation string `yaml:"invocation,omitempty"` // EXACTLY_ONCE, AT_MOST_ONCE, AT_LEAST_ONCE or UNKNOWN
	At         string `yaml:"at,omitempty"`
}

// EffectDoc is a contract clause: when the function returns as stated,
// the parameter (or "this") is of type Is, or not null if Is is empty.
type EffectDoc struct {
	When  string `yaml:"when"` // returns, returns(true) or returns(false)
	Param string `yaml:"param"`
	Is    string `yaml:"is,omitempty"`
}

// StmtDoc is one statement. Exactly one of the keys naming a statement
// kind must be set.
type StmtDoc struct {
	At string `yaml:"at,omitempty"`

	Val  string   `yaml:"val,omitempty"`
	Var  string   `yaml:"var,omitempty"`
	Type string   `yaml:"type,omitempty"`
	Init *ExprDoc `yaml:"init,omitempty"`

	Assign string   `yaml:"assign,omitempty"`
	To     *ExprDoc `yaml:"to,omitempty"`

	Expr *ExprDoc `yaml:"expr,omitempty"`

	If   *CondDoc  `yaml:"if,omitempty"`
	Then []StmtDoc `yaml:"then,omitempty"`
	Else []StmtDoc `yaml:"else,omitempty"`

	While   *CondDoc  `yaml:"while,omitempty"`
	DoWhile *CondDoc  `yaml:"do_while,omitempty"`
	Body    []StmtDoc `yaml:"body,omitempty"`

	Break    bool `yaml:"break,omitempty"`
	Continue bool `yaml:"continue,omitempty"`

	// Return is written "return: {}" when there is no value.
	Return *ExprDoc `yaml:"return,omitempty"`
	Throw  *ExprDoc `yaml:"throw,omitempty"`
}

// ExprDoc is one expression: a typed value, a variable reference, a call
// or a lambda.
type ExprDoc struct {
	At string `yaml:"at,omitempty"`

	Value string `yaml:"value,omitempty"`

	Ref      string `yaml:"ref,omitempty"`
	Required string `yaml:"required,omitempty"`

	Call     string   `yaml:"call,omitempty"`
	Receiver *ExprDoc `yaml:"receiver,omitempty"`
	Args     []ArgDoc `yaml:"args,omitempty"`
	Expected string   `yaml:"expected,omitempty"`

	Lambda *LambdaDoc `yaml:"lambda,omitempty"`
}

// ArgDoc is a call argument; Name is set for named arguments.
type ArgDoc struct {
	Name    string `yaml:"name,omitempty"`
	ExprDoc `yaml:",inline"`
}

// LambdaDoc is a lambda literal. A parameter without a type is implicit.
type LambdaDoc struct {
	Params []ParamDoc `yaml:"params,omitempty"`
	Body   []StmtDoc  `yaml:"body,omitempty"`
	Result *ExprDoc   `yaml:"result,omitempty"`
}

// CondDoc is a branch condition. A condition that only sets the call keys
// is a call whose contract may narrow its arguments.
type CondDoc struct {
	Is      string    `yaml:"is,omitempty"`
	IsNot   string    `yaml:"is_not,omitempty"`
	Type    string    `yaml:"type,omitempty"`
	NotNull string    `yaml:"not_null,omitempty"`
	IsNull  string    `yaml:"is_null,omitempty"`
	And     []CondDoc `yaml:"and,omitempty"`
	Or      []CondDoc `yaml:"or,omitempty"`
	Not     *CondDoc  `yaml:"not,omitempty"`
	Opaque  *ExprDoc  `yaml:"opaque,omitempty"`
	ExprDoc `yaml:",inline"`
}

// Load reads and converts a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse converts program content from bytes. The path is recorded in every
// position and used in error messages.
func Parse(data []byte, path string) (*Program, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if strings.Contains(err.Error(), "did not find expected") {
			return nil, fmt.Errorf("parsing %s: %w (nullable types inside {...} or [...] must be quoted, as in type: \"Int?\")", path, err)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := doc.validate(path); err != nil {
		return nil, err
	}
	return convert(&doc, path)
}

// validate checks what can be checked before types are parsed.
func (d *Document) validate(path string) error {
	if d.Package == "" {
		return fmt.Errorf("%s: package is required", path)
	}

	seenPackages := make(map[string]bool)
	for i, p := range d.Packages {
		if p.Name == "" {
			return fmt.Errorf("%s: packages[%d]: name is required", path, i)
		}
		if p.Name == d.Package {
			return fmt.Errorf("%s: packages[%d]: %s is the analyzed package; declare its functions under functions", path, i, p.Name)
		}
		if seenPackages[p.Name] {
			return fmt.Errorf("%s: packages[%d]: duplicate package %s", path, i, p.Name)
		}
		seenPackages[p.Name] = true
		for j, f := range p.Functions {
			if f.Name == "" {
				return fmt.Errorf("%s: packages[%d].functions[%d]: name is required", path, i, j)
			}
			if len(f.Body) > 0 {
				return fmt.Errorf("%s: packages[%d].functions[%d] (%s): external functions cannot have a body", path, i, j, f.Name)
			}
		}
	}

	for i, imp := range d.Imports {
		pkg, _, ok := splitImport(imp)
		if !ok {
			return fmt.Errorf("%s: imports[%d]: %q must be pkg.name or pkg.*", path, i, imp)
		}
		if !seenPackages[pkg] {
			return fmt.Errorf("%s: imports[%d]: unknown package %s", path, i, pkg)
		}
	}

	seenClasses := make(map[string]bool)
	for i, c := range d.Classes {
		if c.Name == "" {
			return fmt.Errorf("%s: classes[%d]: name is required", path, i)
		}
		if seenClasses[c.Name] {
			return fmt.Errorf("%s: classes[%d]: duplicate class %s", path, i, c.Name)
		}
		seenClasses[c.Name] = true
	}

	for i, f := range d.Functions {
		if f.Name == "" {
			return fmt.Errorf("%s: functions[%d]: name is required", path, i)
		}
	}
	return nil
}

// splitImport splits "pkg.name" and "pkg.*" at the last dot.
func splitImport(imp string) (pkg, name string, ok bool) {
	i := strings.LastIndex(imp, ".")
	if i <= 0 || i == len(imp)-1 {
		return "", "", false
	}
	return imp[:i], imp[i+1:], true
}
