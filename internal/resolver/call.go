// Package resolver picks the declaration a call refers to and infers its
// type arguments.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Lambda describes a lambda literal passed as an argument.
type Lambda struct {
	// ParamTypes holds declared parameter types; nil entries are implicit.
	ParamTypes []typesystem.Type
	// ReturnType is the type of the lambda body result, nil if not known yet.
	ReturnType typesystem.Type
}

// Argument is one argument expression of a call.
type Argument struct {
	Name     string // Named argument; empty for positional
	Type     typesystem.Type
	Position token.Position
	Lambda   *Lambda
}

// CallSite is everything the resolver knows about a call expression.
type CallSite struct {
	Position token.Position
	Receiver *Argument
	Name     string
	Args     []Argument
	Expected typesystem.Type // Expected type of the call result, if any
}

func (s *CallSite) String() string {
	var sb strings.Builder
	if s.Receiver != nil {
		sb.WriteString(typeString(s.Receiver.Type) + ".")
	}
	sb.WriteString(s.Name + "(")
	for i, a := range s.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.Name != "" {
			sb.WriteString(a.Name + " = ")
		}
		if a.Lambda != nil {
			sb.WriteString("{...}")
		} else {
			sb.WriteString(typeString(a.Type))
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func typeString(t typesystem.Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// ResolvedCall is the outcome of resolving one call. It is produced for
// failed calls too, with an error return type, so analysis can continue.
type ResolvedCall struct {
	Position  token.Position
	Name      string
	Candidate *symbols.Signature // nil when resolution failed
	// TypeArguments maps type parameter names to inferred types.
	TypeArguments map[string]typesystem.Type
	// ArgumentMapping[i] is the parameter index of argument i.
	ArgumentMapping []int
	// ParameterTypes are the candidate's parameter types after substitution.
	ParameterTypes []typesystem.Type
	ReturnType     typesystem.Type
	// LambdaParameterTypes[i] are the parameter types of lambda argument i.
	LambdaParameterTypes [][]typesystem.Type
	// Warnings produced while inferring the winner.
	Warnings []*diagnostics.Diagnostic
}

// OK reports whether a candidate was selected.
func (c *ResolvedCall) OK() bool {
	return c.Candidate != nil
}

// ParameterFor returns the substituted parameter type of argument i.
func (c *ResolvedCall) ParameterFor(i int) (typesystem.Type, bool) {
	if i < 0 || i >= len(c.ArgumentMapping) {
		return nil, false
	}
	p := c.ArgumentMapping[i]
	if p < 0 || p >= len(c.ParameterTypes) {
		return nil, false
	}
	return c.ParameterTypes[p], true
}

// Invocation returns the invocation kind of the parameter argument i maps to.
func (c *ResolvedCall) Invocation(i int) symbols.InvocationKind {
	if c.Candidate == nil || i < 0 || i >= len(c.ArgumentMapping) {
		return symbols.InvocationUnknown
	}
	return c.Candidate.Invocation(c.ArgumentMapping[i])
}

// String renders the call for dumps: name<T=Int>(...) : R.
func (c *ResolvedCall) String() string {
	if c.Candidate == nil {
		return fmt.Sprintf("%s: unresolved %s", c.Position, c.Name)
	}
	names := make([]string, 0, len(c.TypeArguments))
	for n := range c.TypeArguments {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + c.TypeArguments[n].String()
	}
	s := fmt.Sprintf("%s: %s", c.Position, c.Candidate.ID())
	if len(parts) > 0 {
		s += " [" + strings.Join(parts, ", ") + "]"
	}
	return s + " : " + typeString(c.ReturnType)
}

func failedCall(site *CallSite, reason string) *ResolvedCall {
	mapping := make([]int, len(site.Args))
	for i := range mapping {
		mapping[i] = -1
	}
	return &ResolvedCall{
		Position:        site.Position,
		Name:            site.Name,
		ArgumentMapping: mapping,
		ReturnType:      typesystem.TError{Reason: reason},
	}
}
