package diagnostics

import (
	"fmt"
	"sort"
	"sync"
)

// Sink receives diagnostics. Reporter and Bag both implement it.
type Sink interface {
	Report(d *Diagnostic)
}

// Reporter is the append-only, thread-safe diagnostic stream shared by all
// analysis workers. Diagnostics are deduplicated by position and kind.
type Reporter struct {
	mu       sync.Mutex
	errorSet map[string]*Diagnostic // Key: "line:col:kind"
	order    []string
}

// NewReporter creates an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{errorSet: make(map[string]*Diagnostic)}
}

// Report appends a diagnostic unless one with the same key was already seen.
func (r *Reporter) Report(d *Diagnostic) {
	key := fmt.Sprintf("%s:%s", d.Position.Key(), d.Kind)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.errorSet[key]; ok {
		return
	}
	r.errorSet[key] = d
	r.order = append(r.order, key)
}

// Diagnostics returns all unique diagnostics sorted by position, then kind.
func (r *Reporter) Diagnostics() []*Diagnostic {
	r.mu.Lock()
	result := make([]*Diagnostic, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.errorSet[key])
	}
	r.mu.Unlock()

	Sort(result)
	return result
}

// HasErrors returns true if any error-severity diagnostic was reported.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.errorSet {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Sort orders diagnostics by position, then kind, for deterministic output.
func Sort(ds []*Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Position != ds[j].Position {
			return ds[i].Position.Less(ds[j].Position)
		}
		return ds[i].Kind < ds[j].Kind
	})
}

// Bag is an unsynchronized buffer owned by one worker. It is flushed into
// the shared reporter once the worker finishes.
type Bag struct {
	items []*Diagnostic
}

func (b *Bag) Report(d *Diagnostic) {
	b.items = append(b.items, d)
}

// Items returns the buffered diagnostics in report order.
func (b *Bag) Items() []*Diagnostic {
	return b.items
}

// Len returns the number of buffered diagnostics.
func (b *Bag) Len() int {
	return len(b.items)
}

// FlushTo moves all buffered diagnostics into sink.
func (b *Bag) FlushTo(sink Sink) {
	for _, d := range b.items {
		sink.Report(d)
	}
	b.items = nil
}
