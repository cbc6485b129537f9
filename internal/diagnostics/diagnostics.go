package diagnostics

import (
	"fmt"
	"strings"

	"github.com/funvibe/typeinfer/internal/token"
)

// Kind is a stable identifier for a diagnostic.
type Kind string

const (
	// Call resolution
	InapplicableCandidate       Kind = "INAPPLICABLE_CANDIDATE"
	NoneApplicable              Kind = "NONE_APPLICABLE"
	OverloadResolutionAmbiguity Kind = "OVERLOAD_RESOLUTION_AMBIGUITY"
	UnresolvedReference         Kind = "UNRESOLVED_REFERENCE"
	EmptyIntersection           Kind = "EMPTY_INTERSECTION"
	TypeMismatch                Kind = "TYPE_MISMATCH"
	ImplicitNothingTypeArgument Kind = "IMPLICIT_NOTHING_TYPE_ARGUMENT"
	Deprecation                 Kind = "DEPRECATION"

	// Data flow
	UninitializedVariable     Kind = "UNINITIALIZED_VARIABLE"
	ValReassignment           Kind = "VAL_REASSIGNMENT"
	CapturedValInitialization Kind = "CAPTURED_VAL_INITIALIZATION"
	SmartcastImpossible       Kind = "SMARTCAST_IMPOSSIBLE"
	UnreachableCode           Kind = "UNREACHABLE_CODE"
	UnusedVariable            Kind = "UNUSED_VARIABLE"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a finding surfaced to users. It implements error so it can
// travel through the same channels as other failures.
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Position token.Position
	Message  string
	// Related lists secondary facts, e.g. the tied candidates of an ambiguity.
	Related []string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Position, d.Severity, d.Kind, d.Message)
}

// IsError returns true for error-severity diagnostics.
func (d *Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// NewError creates an error diagnostic.
func NewError(kind Kind, pos token.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Severity: SeverityError,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewWarning creates a warning diagnostic.
func NewWarning(kind Kind, pos token.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Position: pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithRelated returns the diagnostic with related entries appended.
func (d *Diagnostic) WithRelated(related ...string) *Diagnostic {
	d.Related = append(d.Related, related...)
	return d
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

// Format renders a diagnostic for terminals. Related entries are indented
// under the main line.
func Format(d *Diagnostic, color bool) string {
	var sb strings.Builder
	sev := string(d.Severity)
	if color {
		switch d.Severity {
		case SeverityError:
			sev = ansiRed + sev + ansiReset
		case SeverityWarning:
			sev = ansiYellow + sev + ansiReset
		}
	}
	fmt.Fprintf(&sb, "%s: %s[%s]: %s", d.Position, sev, d.Kind, d.Message)
	for _, r := range d.Related {
		sb.WriteString("\n    ")
		if color {
			sb.WriteString(ansiDim + r + ansiReset)
		} else {
			sb.WriteString(r)
		}
	}
	return sb.String()
}
