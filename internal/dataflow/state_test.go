package dataflow

import (
	"testing"

	"github.com/funvibe/typeinfer/internal/typesystem"
)

func TestJoin(t *testing.T) {
	x := &Variable{ID: 0, Name: "x"}
	y := &Variable{ID: 1, Name: "y"}

	left := NewFlow(true)
	left.setFact(x, Fact{Type: ty("String")})
	left.setFact(y, Fact{Type: ty("Int")})
	left.setInit(x, Initialized)
	left.setInit(y, Initialized)

	right := NewFlow(true)
	right.setFact(x, Fact{Type: ty("String")})
	right.setFact(y, Fact{Type: ty("Number")})
	right.setInit(x, Initialized)

	joined := Join(left, right, unreachableFlow(), nil)
	if !joined.Reachable {
		t.Fatalf("join of live flows is unreachable")
	}
	if f, ok := joined.Fact(x); !ok || !typesystem.Equal(f.Type, ty("String")) {
		t.Errorf("fact on x lost: %v", joined)
	}
	if _, ok := joined.Fact(y); ok {
		t.Errorf("conflicting facts on y survived: %v", joined)
	}
	if got := joined.Init(x); got != Initialized {
		t.Errorf("x is %s, want initialized", got)
	}
	if got := joined.Init(y); got != MaybeInitialized {
		t.Errorf("y is %s, want maybe-initialized", got)
	}

	if Join(unreachableFlow(), nil).Reachable {
		t.Errorf("join of dead flows is reachable")
	}
}

func TestFlowEqualAndClone(t *testing.T) {
	v := &Variable{ID: 3, Name: "v"}
	f := NewFlow(true)
	f.setFact(v, Fact{Type: ty("String"), Stability: Unstable})

	c := f.Clone()
	if !f.Equal(c) {
		t.Fatalf("clone differs: %v vs %v", f, c)
	}
	c.dropFact(v)
	if f.Equal(c) {
		t.Errorf("dropping a fact on the clone is not visible")
	}
	if _, ok := f.Fact(v); !ok {
		t.Errorf("clone shares facts with the original")
	}
	if f.Equal(nil) {
		t.Errorf("flow equals nil")
	}
}
