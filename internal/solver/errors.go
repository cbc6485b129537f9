package solver

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/token"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// MismatchError is returned by the injector when two closed types are not
// in the required subtype relation.
type MismatchError struct {
	Sub      typesystem.Type
	Super    typesystem.Type
	Position token.Position
	Origin   string
}

func (e *MismatchError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("%s: %s is not a subtype of %s", e.Origin, e.Sub, e.Super)
	}
	return fmt.Sprintf("%s is not a subtype of %s", e.Sub, e.Super)
}

// Contradiction means a variable has a lower bound that does not fit its
// upper bound, so no solution exists.
type Contradiction struct {
	Var      typesystem.TVar
	Lower    typesystem.Type
	Upper    typesystem.Type
	Position token.Position
}

func (e *Contradiction) Error() string {
	return fmt.Sprintf("type variable %s: lower bound %s is not a subtype of upper bound %s", e.Var, e.Lower, e.Upper)
}

// EmptyIntersectionError is returned instead of a warning under strict mode.
type EmptyIntersectionError struct {
	Var      typesystem.TVar
	Type     typesystem.Type
	Position token.Position
}

func (e *EmptyIntersectionError) Error() string {
	return fmt.Sprintf("type variable %s is inferred into an empty intersection %s", e.Var, e.Type)
}

// InternalError is a solver failure that is not the program's fault, such
// as an exhausted iteration budget. It carries a stack trace and a dump of
// the system and is never shown as a user diagnostic.
type InternalError struct {
	SystemID uuid.UUID
	Dump     string
	err      error
}

func (e *InternalError) Error() string { return e.err.Error() }

func (e *InternalError) Unwrap() error { return e.err }

// Format prints the stack with %+v, like errors created by pkg/errors.
func (e *InternalError) Format(s fmt.State, verb rune) {
	if f, ok := e.err.(fmt.Formatter); ok {
		f.Format(s, verb)
		if verb == 'v' && s.Flag('+') {
			fmt.Fprintf(s, "\n%s", e.Dump)
		}
		return
	}
	fmt.Fprint(s, e.err.Error())
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                5,
}

func newInternalError(sys *constraints.System, state any, format string, args ...any) *InternalError {
	return &InternalError{
		SystemID: sys.ID,
		Dump:     sys.String() + dumpConfig.Sdump(state),
		err:      errors.Errorf(format, args...),
	}
}
