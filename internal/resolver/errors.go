package resolver

import (
	"errors"
	"fmt"

	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/solver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/token"
)

// DiagnosticError is a resolution failure that is shown to the user.
type DiagnosticError interface {
	error
	Diagnostic() *diagnostics.Diagnostic
}

// UnresolvedReferenceError means no declaration with the name is visible.
type UnresolvedReferenceError struct {
	Position token.Position
	Name     string
}

func (e *UnresolvedReferenceError) Error() string {
	return "unresolved reference: " + e.Name
}

func (e *UnresolvedReferenceError) Diagnostic() *diagnostics.Diagnostic {
	return diagnostics.NewError(diagnostics.UnresolvedReference, e.Position, "unresolved reference: %s", e.Name)
}

// InapplicableError means the only candidate does not accept the arguments.
type InapplicableError struct {
	Position  token.Position
	Candidate symbols.Candidate
}

func (e *InapplicableError) Error() string {
	return fmt.Sprintf("inapplicable candidate %s: %s", e.Candidate.Signature, e.Candidate.Reason)
}

func (e *InapplicableError) Diagnostic() *diagnostics.Diagnostic {
	return diagnostics.NewError(diagnostics.InapplicableCandidate, e.Position,
		"inapplicable candidate %s: %s", e.Candidate.Signature, e.Candidate.Reason)
}

// NoneApplicableError means several candidates exist and none accepts the arguments.
type NoneApplicableError struct {
	Position   token.Position
	Name       string
	Candidates []symbols.Candidate
}

func (e *NoneApplicableError) Error() string {
	return fmt.Sprintf("none of the %d candidates for %s is applicable", len(e.Candidates), e.Name)
}

func (e *NoneApplicableError) Diagnostic() *diagnostics.Diagnostic {
	d := diagnostics.NewError(diagnostics.NoneApplicable, e.Position,
		"none of the following candidates is applicable to %s", e.Name)
	for _, c := range e.Candidates {
		d.WithRelated(fmt.Sprintf("%s: %s", c.Signature, c.Reason))
	}
	return d
}

// AmbiguityError means several applicable candidates are equally specific.
type AmbiguityError struct {
	Position   token.Position
	Name       string
	Candidates []symbols.Candidate
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("overload resolution ambiguity for %s between %d candidates", e.Name, len(e.Candidates))
}

func (e *AmbiguityError) Diagnostic() *diagnostics.Diagnostic {
	d := diagnostics.NewError(diagnostics.OverloadResolutionAmbiguity, e.Position,
		"overload resolution ambiguity for %s", e.Name)
	for _, c := range e.Candidates {
		d.WithRelated(c.Signature.String())
	}
	return d
}

// EmptyIntersectionError is the strict-mode failure of the only candidate.
type EmptyIntersectionError struct {
	Position  token.Position
	Candidate symbols.Candidate
	Cause     *solver.EmptyIntersectionError
}

func (e *EmptyIntersectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Candidate.Signature, e.Cause)
}

func (e *EmptyIntersectionError) Unwrap() error { return e.Cause }

func (e *EmptyIntersectionError) Diagnostic() *diagnostics.Diagnostic {
	return diagnostics.NewError(diagnostics.EmptyIntersection, e.Position,
		"type variable %s of %s is inferred into an empty intersection %s",
		e.Cause.Var, e.Candidate.Signature.Name, e.Cause.Type)
}

// AsDiagnostic converts a user-facing resolution error to a diagnostic.
func AsDiagnostic(err error) (*diagnostics.Diagnostic, bool) {
	var de DiagnosticError
	if errors.As(err, &de) {
		return de.Diagnostic(), true
	}
	return nil, false
}
