package solver

import "sort"

// dependencyGraph has an edge v -> w when a bound of v mentions w, so w has
// to be fixed before v.
type dependencyGraph map[int][]int

func (g dependencyGraph) nodes() []int {
	out := make([]int, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// components returns the strongly connected components of g using Tarjan's
// algorithm. A component is emitted only after every component it depends
// on, so the first one can be fixed without waiting for anything else.
// Members of each component are sorted by id.
func (g dependencyGraph) components() [][]int {
	index := make(map[int]int)
	lowlink := make(map[int]int)
	onStack := make(map[int]bool)
	var stack []int
	var result [][]int
	counter := 0

	var strongConnect func(int)
	strongConnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := append([]int(nil), g[v]...)
		sort.Ints(neighbors)
		for _, w := range neighbors {
			if _, known := g[w]; !known {
				continue
			}
			if _, visited := index[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Ints(comp)
			result = append(result, comp)
		}
	}

	for _, n := range g.nodes() {
		if _, visited := index[n]; !visited {
			strongConnect(n)
		}
	}
	return result
}
