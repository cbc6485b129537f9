package symbols

import (
	"fmt"
	"strings"

	"github.com/funvibe/typeinfer/internal/typesystem"
)

// InvocationKind is the callsInPlace contract of a functional parameter:
// how many times the callee invokes the lambda before returning.
type InvocationKind int

const (
	InvocationUnknown InvocationKind = iota
	AtMostOnce
	ExactlyOnce
	AtLeastOnce
)

func (k InvocationKind) String() string {
	switch k {
	case AtMostOnce:
		return "AT_MOST_ONCE"
	case ExactlyOnce:
		return "EXACTLY_ONCE"
	case AtLeastOnce:
		return "AT_LEAST_ONCE"
	default:
		return "UNKNOWN"
	}
}

// ParseInvocationKind accepts the names printed by String.
func ParseInvocationKind(s string) (InvocationKind, error) {
	switch strings.ToUpper(s) {
	case "", "UNKNOWN":
		return InvocationUnknown, nil
	case "AT_MOST_ONCE":
		return AtMostOnce, nil
	case "EXACTLY_ONCE":
		return ExactlyOnce, nil
	case "AT_LEAST_ONCE":
		return AtLeastOnce, nil
	}
	return InvocationUnknown, fmt.Errorf("unknown invocation kind %q", s)
}

// EffectCondition is the left side of a contract effect.
type EffectCondition int

const (
	// Returns holds whenever the call completes normally.
	Returns EffectCondition = iota
	// ReturnsTrue holds when the call returned true.
	ReturnsTrue
	// ReturnsFalse holds when the call returned false.
	ReturnsFalse
)

// ReceiverIndex designates the receiver in Effect.Param.
const ReceiverIndex = -1

// Effect is a contract clause "returns(...) implies (param is Type)" or,
// with a nil Type, "returns(...) implies (param != null)".
type Effect struct {
	Condition EffectCondition
	Param     int
	Type      typesystem.Type
}

func (e Effect) String() string {
	cond := "returns()"
	switch e.Condition {
	case ReturnsTrue:
		cond = "returns(true)"
	case ReturnsFalse:
		cond = "returns(false)"
	}
	subject := fmt.Sprintf("#%d", e.Param)
	if e.Param == ReceiverIndex {
		subject = "this"
	}
	if e.Type == nil {
		return fmt.Sprintf("%s implies (%s != null)", cond, subject)
	}
	return fmt.Sprintf("%s implies (%s is %s)", cond, subject, e.Type)
}

// Param is a value parameter of a signature.
type Param struct {
	Name       string
	Type       typesystem.Type
	HasDefault bool
	Vararg     bool
	// Invocation is only meaningful for parameters of function type.
	Invocation InvocationKind
}

// Signature is a callable declaration as seen by overload resolution.
type Signature struct {
	Name       string
	Package    string
	TypeParams []typesystem.TParam
	Receiver   typesystem.Type // nil for non-extension functions
	Params     []Param
	Returns    typesystem.Type
	Deprecated string // Deprecation message; empty if not deprecated
	Effects    []Effect
}

// ID is a stable textual key used to order candidates deterministically.
func (s *Signature) ID() string {
	var sb strings.Builder
	sb.WriteString(s.Package)
	sb.WriteString(".")
	if s.Receiver != nil {
		sb.WriteString(typesystem.Key(s.Receiver))
		sb.WriteString(".")
	}
	sb.WriteString(s.Name)
	if len(s.TypeParams) > 0 {
		names := make([]string, len(s.TypeParams))
		for i, tp := range s.TypeParams {
			names[i] = tp.Name
		}
		sb.WriteString("<" + strings.Join(names, ",") + ">")
	}
	sb.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		if p.Vararg {
			sb.WriteString("vararg ")
		}
		sb.WriteString(p.Type.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// String renders the signature for diagnostics: pkg.name(Int, String): R.
func (s *Signature) String() string {
	var sb strings.Builder
	if len(s.TypeParams) > 0 {
		parts := make([]string, len(s.TypeParams))
		for i, tp := range s.TypeParams {
			parts[i] = tp.Name
			if tp.Bound != nil {
				parts[i] += " : " + tp.Bound.String()
			}
		}
		sb.WriteString("<" + strings.Join(parts, ", ") + "> ")
	}
	if s.Package != "" {
		sb.WriteString(s.Package + ".")
	}
	if s.Receiver != nil {
		sb.WriteString(s.Receiver.String() + ".")
	}
	sb.WriteString(s.Name + "(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Vararg {
			sb.WriteString("vararg ")
		}
		sb.WriteString(p.Type.String())
		if p.HasDefault {
			sb.WriteString(" = ...")
		}
	}
	sb.WriteString(")")
	if s.Returns != nil {
		sb.WriteString(": " + s.Returns.String())
	}
	return sb.String()
}

// IsGeneric reports whether the signature declares type parameters.
func (s *Signature) IsGeneric() bool {
	return len(s.TypeParams) > 0
}

// VarargIndex returns the index of the vararg parameter or -1.
func (s *Signature) VarargIndex() int {
	for i, p := range s.Params {
		if p.Vararg {
			return i
		}
	}
	return -1
}

// ParamByName returns the index of the named parameter or -1.
func (s *Signature) ParamByName(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Invocation returns the invocation kind of parameter i.
func (s *Signature) Invocation(i int) InvocationKind {
	if i < 0 || i >= len(s.Params) {
		return InvocationUnknown
	}
	return s.Params[i].Invocation
}
