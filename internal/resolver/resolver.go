package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/funvibe/typeinfer/internal/constraints"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/solver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// Recorder receives the outcome of a resolution: either the resolved call
// or the error diagnostic, never both.
type Recorder interface {
	RecordCall(call *ResolvedCall)
	Report(d *diagnostics.Diagnostic)
}

// Resolver resolves calls against a class table. It is stateless between
// calls and safe for concurrent use.
type Resolver struct {
	Table  *typesystem.ClassTable
	Solver *solver.Solver
	// IDs numbers the variables of every constraint system the resolver
	// creates.
	IDs *constraints.VariableIDs
}

// New creates a resolver using s for inference.
func New(table *typesystem.ClassTable, s *solver.Solver) *Resolver {
	return &Resolver{Table: table, Solver: s, IDs: &constraints.VariableIDs{}}
}

// attempt is one candidate checked against a call site.
type attempt struct {
	cand     symbols.Candidate
	mapping  *argumentMapping
	subst    typesystem.ParamSubst
	vars     []typesystem.TVar // One per type parameter
	returns  typesystem.Type   // Instantiated return type
	lambdas  [][]typesystem.Type
	solution *solver.Solution
	empty    *solver.EmptyIntersectionError
}

func (a *attempt) sig() *symbols.Signature {
	return a.cand.Signature
}

func (a *attempt) reject(reason string) {
	a.cand.Status = symbols.Inapplicable
	a.cand.Reason = reason
}

// Resolve looks the call up, resolves it and hands the outcome to rec.
// The returned error is non-nil only for internal failures; user-facing
// errors go to rec as diagnostics.
func (r *Resolver) Resolve(site *CallSite, lookup symbols.Lookup, rec Recorder) (*ResolvedCall, error) {
	var receiver typesystem.Type
	if site.Receiver != nil {
		receiver = argType(*site.Receiver)
	}
	call, err := r.ResolveCall(site, lookup.LookupCandidates(receiver, site.Name))
	return call, Deliver(call, err, rec)
}

// Deliver hands the outcome of ResolveCall to rec: the resolved call and
// its warnings, or the error diagnostic. Internal errors are returned.
func Deliver(call *ResolvedCall, err error, rec Recorder) error {
	if err != nil {
		if d, ok := AsDiagnostic(err); ok {
			rec.Report(d)
			return nil
		}
		return err
	}
	rec.RecordCall(call)
	for _, w := range call.Warnings {
		rec.Report(w)
	}
	return nil
}

// ResolveCall picks the most specific applicable candidate from the
// nearest tower level that has one. The returned call is never nil.
func (r *Resolver) ResolveCall(site *CallSite, cands []symbols.Candidate) (*ResolvedCall, error) {
	if len(cands) == 0 {
		return failedCall(site, "unresolved reference"), &UnresolvedReferenceError{Position: site.Position, Name: site.Name}
	}

	sorted := append([]symbols.Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].Signature.ID() < sorted[j].Signature.ID()
	})

	var checked []*attempt
	for _, level := range symbols.GroupByLevel(sorted) {
		var applicable []*attempt
		for _, c := range level {
			at, err := r.check(site, c)
			if err != nil {
				return failedCall(site, "internal error"), err
			}
			checked = append(checked, at)
			if at.cand.Status == symbols.Applicable {
				applicable = append(applicable, at)
			}
		}
		if len(applicable) == 0 {
			continue
		}

		winner, tied, err := r.mostSpecific(applicable)
		if err != nil {
			return failedCall(site, "internal error"), err
		}
		if winner == nil {
			return failedCall(site, "ambiguous call"), &AmbiguityError{
				Position:   site.Position,
				Name:       site.Name,
				Candidates: candidatesOf(tied),
			}
		}
		return r.complete(site, winner), nil
	}

	if len(checked) == 1 {
		at := checked[0]
		if at.empty != nil {
			return failedCall(site, "empty intersection"), &EmptyIntersectionError{
				Position:  site.Position,
				Candidate: at.cand,
				Cause:     at.empty,
			}
		}
		return failedCall(site, "inapplicable candidate"), &InapplicableError{Position: site.Position, Candidate: at.cand}
	}
	return failedCall(site, "no applicable candidate"), &NoneApplicableError{
		Position:   site.Position,
		Name:       site.Name,
		Candidates: candidatesOf(checked),
	}
}

func candidatesOf(ats []*attempt) []symbols.Candidate {
	out := make([]symbols.Candidate, len(ats))
	for i, at := range ats {
		out[i] = at.cand
	}
	return out
}

// check decides whether c accepts the call. Only internal failures are
// returned as errors.
func (r *Resolver) check(site *CallSite, c symbols.Candidate) (*attempt, error) {
	at := &attempt{cand: c}
	mapping, err := mapArguments(c.Signature, site.Args)
	if err != nil {
		at.reject(err.Error())
		return at, nil
	}
	at.mapping = mapping

	// The expected type only helps inference. When it cannot be met the
	// candidate is still applicable and the mismatch is reported where the
	// result is used.
	if site.Expected != nil && typesystem.MentionsParam(returnsOf(c.Signature)) {
		err := r.infer(site, at, true)
		if err == nil {
			at.cand.Status = symbols.Applicable
			return at, nil
		}
		if isInternal(err) {
			return nil, err
		}
	}

	if err := r.infer(site, at, false); err != nil {
		if isInternal(err) {
			return nil, err
		}
		var empty *solver.EmptyIntersectionError
		if errors.As(err, &empty) {
			at.empty = empty
		}
		at.reject(err.Error())
		return at, nil
	}
	at.cand.Status = symbols.Applicable
	return at, nil
}

// infer builds and solves the constraint system of one candidate.
func (r *Resolver) infer(site *CallSite, at *attempt, withExpected bool) error {
	sig := at.sig()
	in := r.Solver.Injector()
	sys := constraints.NewSystem(r.IDs)

	at.subst = make(typesystem.ParamSubst, len(sig.TypeParams))
	at.vars = make([]typesystem.TVar, len(sig.TypeParams))
	for i, tp := range sig.TypeParams {
		v := sys.NewVariable(tp.Name)
		at.subst[tp.Key()] = v
		at.vars[i] = v
	}
	for i, tp := range sig.TypeParams {
		if tp.Bound == nil {
			continue
		}
		bound := typesystem.Instantiate(tp.Bound, at.subst)
		if err := in.Subtype(sys, at.vars[i], bound, site.Position, "upper bound of "+tp.Name); err != nil {
			return err
		}
	}

	if site.Receiver != nil && sig.Receiver != nil {
		recv := typesystem.Instantiate(sig.Receiver, at.subst)
		if err := in.Subtype(sys, argType(*site.Receiver), recv, site.Receiver.Position, "receiver"); err != nil {
			return err
		}
	}

	at.lambdas = make([][]typesystem.Type, len(site.Args))
	for i, arg := range site.Args {
		param := typesystem.Instantiate(sig.Params[at.mapping.params[i]].Type, at.subst)
		if arg.Lambda != nil {
			params, err := r.injectLambda(sys, arg, param)
			if err != nil {
				return fmt.Errorf("argument #%d: %w", i+1, err)
			}
			at.lambdas[i] = params
			continue
		}
		if err := in.Subtype(sys, argType(arg), param, arg.Position, fmt.Sprintf("argument #%d", i+1)); err != nil {
			return err
		}
	}

	at.returns = typesystem.Instantiate(returnsOf(sig), at.subst)
	markEscaping(sys, at.returns)
	for _, params := range at.lambdas {
		for _, p := range params {
			markEscaping(sys, p)
		}
	}
	if withExpected {
		if err := in.Subtype(sys, at.returns, site.Expected, site.Position, "expected type"); err != nil {
			return err
		}
	}

	sol, err := r.Solver.Solve(sys)
	if err != nil {
		return err
	}
	at.solution = sol
	return nil
}

// injectLambda constrains a lambda argument against its parameter type and
// returns the lambda's parameter types before solving.
func (r *Resolver) injectLambda(sys *constraints.System, arg Argument, param typesystem.Type) ([]typesystem.Type, error) {
	in := r.Solver.Injector()
	lam := arg.Lambda

	params, ret, ok := typesystem.FunctionParts(param)
	if !ok {
		// A lambda passed where a plain type parameter is expected.
		own := make([]typesystem.Type, len(lam.ParamTypes))
		for j, d := range lam.ParamTypes {
			if d != nil {
				own[j] = d
			} else {
				own[j] = sys.NewVariable(fmt.Sprintf("P%d", j+1))
			}
		}
		var result typesystem.Type = lam.ReturnType
		if result == nil {
			result = sys.NewVariable("R")
		}
		return own, in.Subtype(sys, typesystem.Func(own, result), param, arg.Position, "lambda")
	}

	if len(lam.ParamTypes) != 0 && len(lam.ParamTypes) != len(params) {
		return nil, fmt.Errorf("lambda declares %d parameters, expected %d", len(lam.ParamTypes), len(params))
	}
	out := make([]typesystem.Type, len(params))
	copy(out, params)
	for j, d := range lam.ParamTypes {
		if d == nil {
			continue
		}
		if err := in.Subtype(sys, params[j], d, arg.Position, fmt.Sprintf("lambda parameter #%d", j+1)); err != nil {
			return nil, err
		}
		out[j] = d
	}
	if lam.ReturnType != nil {
		if err := in.Subtype(sys, lam.ReturnType, ret, arg.Position, "lambda result"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// complete builds the resolved call for the winner.
func (r *Resolver) complete(site *CallSite, at *attempt) *ResolvedCall {
	sig := at.sig()
	sol := at.solution

	uninferred := make(typesystem.Subst, len(sol.Unresolved))
	for _, v := range sol.Unresolved {
		uninferred[v.ID] = typesystem.TError{Reason: "cannot infer " + v.Name}
	}
	final := func(t typesystem.Type) typesystem.Type {
		return sol.Apply(t).Apply(uninferred)
	}

	call := &ResolvedCall{
		Position:             site.Position,
		Name:                 site.Name,
		Candidate:            sig,
		TypeArguments:        make(map[string]typesystem.Type, len(sig.TypeParams)),
		ArgumentMapping:      append([]int(nil), at.mapping.params...),
		ParameterTypes:       make([]typesystem.Type, len(sig.Params)),
		ReturnType:           final(at.returns),
		LambdaParameterTypes: make([][]typesystem.Type, len(site.Args)),
	}
	for i, tp := range sig.TypeParams {
		call.TypeArguments[tp.Name] = final(at.vars[i])
	}
	for i, p := range sig.Params {
		call.ParameterTypes[i] = final(typesystem.Instantiate(p.Type, at.subst))
	}
	for i, params := range at.lambdas {
		if params == nil {
			continue
		}
		out := make([]typesystem.Type, len(params))
		for j, p := range params {
			out[j] = final(p)
		}
		call.LambdaParameterTypes[i] = out
	}
	for _, ei := range sol.EmptyIntersections {
		call.Warnings = append(call.Warnings, diagnostics.NewWarning(diagnostics.EmptyIntersection, site.Position,
			"type variable %s of %s is inferred into an empty intersection %s", ei.Var.Name, sig.Name, ei.Type))
	}
	return call
}

func returnsOf(sig *symbols.Signature) typesystem.Type {
	if sig.Returns == nil {
		return typesystem.Unit()
	}
	return sig.Returns
}

func argType(a Argument) typesystem.Type {
	if a.Type == nil {
		return typesystem.TError{Reason: "untyped argument"}
	}
	return a.Type
}

func markEscaping(sys *constraints.System, t typesystem.Type) {
	for _, v := range t.FreeTypeVariables() {
		if sys.Owns(v) {
			sys.MarkEscaping(v)
		}
	}
}

func isInternal(err error) bool {
	var ie *solver.InternalError
	return errors.As(err, &ie)
}
