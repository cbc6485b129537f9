package dataflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/typeinfer/internal/typesystem"
)

// InitState is the definite-initialization state of a variable.
type InitState int

const (
	NotInitialized InitState = iota
	MaybeInitialized
	Initialized
)

func (s InitState) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case MaybeInitialized:
		return "maybe-initialized"
	default:
		return "not-initialized"
	}
}

// Stability tells whether a smart cast may be applied to reads.
type Stability int

const (
	Stable Stability = iota
	Unstable
)

func (s Stability) String() string {
	if s == Unstable {
		return "unstable"
	}
	return "stable"
}

// Fact narrows a variable to Type.
type Fact struct {
	Type      typesystem.Type
	Stability Stability
}

func (f Fact) equal(other Fact) bool {
	return f.Stability == other.Stability && typesystem.Equal(f.Type, other.Type)
}

// Flow is the analysis state at one program point.
type Flow struct {
	Reachable bool
	facts     map[int]Fact      // By variable ID
	init      map[int]InitState // Missing means NotInitialized
}

// NewFlow creates an empty state.
func NewFlow(reachable bool) *Flow {
	return &Flow{
		Reachable: reachable,
		facts:     make(map[int]Fact),
		init:      make(map[int]InitState),
	}
}

func unreachableFlow() *Flow {
	return NewFlow(false)
}

// Clone creates a deep copy of the state.
func (f *Flow) Clone() *Flow {
	out := NewFlow(f.Reachable)
	for k, v := range f.facts {
		out.facts[k] = v
	}
	for k, v := range f.init {
		out.init[k] = v
	}
	return out
}

// Fact returns the narrowing of v, if any.
func (f *Flow) Fact(v *Variable) (Fact, bool) {
	fact, ok := f.facts[v.ID]
	return fact, ok
}

// Init returns the initialization state of v.
func (f *Flow) Init(v *Variable) InitState {
	return f.init[v.ID]
}

func (f *Flow) setFact(v *Variable, fact Fact) {
	f.facts[v.ID] = fact
}

func (f *Flow) dropFact(v *Variable) {
	delete(f.facts, v.ID)
}

func (f *Flow) setInit(v *Variable, s InitState) {
	if s == NotInitialized {
		delete(f.init, v.ID)
		return
	}
	f.init[v.ID] = s
}

// Join merges the states of all incoming edges. Unreachable states are
// ignored. A fact survives only if it is identical on every edge; an
// initialization state that differs between edges becomes
// MaybeInitialized.
func Join(flows ...*Flow) *Flow {
	var live []*Flow
	for _, f := range flows {
		if f != nil && f.Reachable {
			live = append(live, f)
		}
	}
	if len(live) == 0 {
		return unreachableFlow()
	}
	out := live[0].Clone()
	for _, f := range live[1:] {
		for id, fact := range out.facts {
			other, ok := f.facts[id]
			if !ok || !fact.equal(other) {
				delete(out.facts, id)
			}
		}
		for id, s := range out.init {
			if f.init[id] != s {
				out.init[id] = MaybeInitialized
			}
		}
		for id, s := range f.init {
			if _, ok := out.init[id]; !ok && s != NotInitialized {
				out.init[id] = MaybeInitialized
			}
		}
	}
	return out
}

// Equal reports whether two states carry the same information.
func (f *Flow) Equal(other *Flow) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.Reachable != other.Reachable || len(f.facts) != len(other.facts) || len(f.init) != len(other.init) {
		return false
	}
	for id, fact := range f.facts {
		o, ok := other.facts[id]
		if !ok || !fact.equal(o) {
			return false
		}
	}
	for id, s := range f.init {
		if other.init[id] != s {
			return false
		}
	}
	return true
}

func (f *Flow) String() string {
	if !f.Reachable {
		return "unreachable"
	}
	var parts []string
	for id, fact := range f.facts {
		parts = append(parts, fmt.Sprintf("#%d: %s (%s)", id, fact.Type, fact.Stability))
	}
	for id, s := range f.init {
		parts = append(parts, fmt.Sprintf("#%d: %s", id, s))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}
