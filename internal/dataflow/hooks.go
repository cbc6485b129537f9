package dataflow

import (
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/symbols"
	"github.com/funvibe/typeinfer/internal/typesystem"
)

// ScopeHooks resolves every call of a body against one lookup.
type ScopeHooks struct {
	Resolver *resolver.Resolver
	Lookup   symbols.Lookup
}

// ResolveCall implements Hooks.
func (h *ScopeHooks) ResolveCall(site *resolver.CallSite) (*resolver.ResolvedCall, error) {
	var receiver typesystem.Type
	if site.Receiver != nil {
		receiver = site.Receiver.Type
		if receiver == nil {
			receiver = typesystem.NullableAny()
		}
	}
	return h.Resolver.ResolveCall(site, h.Lookup.LookupCandidates(receiver, site.Name))
}

// InvocationKinds implements Contracts. The graph is built before argument
// types are known, so the kinds come from the candidates' parameters alone.
func (h *ScopeHooks) InvocationKinds(call *Call) []symbols.InvocationKind {
	var receiver typesystem.Type
	if call.Receiver != nil {
		receiver = typesystem.NullableAny()
	}
	site := &resolver.CallSite{Position: call.Position, Name: call.Name, Args: make([]resolver.Argument, len(call.Args))}
	for i, a := range call.Args {
		site.Args[i] = resolver.Argument{Name: a.Name, Position: a.Value.Pos()}
	}
	return resolver.InvocationKinds(site, h.Lookup.LookupCandidates(receiver, call.Name))
}
