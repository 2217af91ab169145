package graph

import "slices"

// AnalyzeCycles reports every cycle in edges, one per strongly connected
// component.
//
// AddEdge keeps a live graph acyclic, so this is for whole-graph audits of
// edge sets assembled elsewhere (imported sessions, catalogs rebuilt from
// hand-edited records). Unlike DetectCircularReferences it does not stop at
// the first cycle.
//
// The algorithm:
//  1. Build the from → to adjacency
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component with more than one record, or a self-loop, as a
//     cycle
//
// An acyclic edge set returns an empty list. Output is sorted by the first
// record of each path.
func AnalyzeCycles(edges []Edge) []Cycle {
	if len(edges) == 0 {
		return []Cycle{}
	}

	adj := adjacency(edges)
	cycles := []Cycle{}
	for _, scc := range tarjanSCC(adj) {
		if len(scc) > 1 || hasSelfLoop(scc[0], adj) {
			path := reconstructCyclePath(scc, adj)
			cycles = append(cycles, Cycle{Path: path, Message: describeCycle(path)})
		}
	}

	slices.SortFunc(cycles, func(a, b Cycle) int {
		return slices.Compare(a.Path, b.Path)
	})
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, adj map[string][]string) bool {
	return slices.Contains(adj[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Each component is returned sorted; roots are visited in ascending order.
func tarjanSCC(adj map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	return sccs
}

// reconstructCyclePath returns a cycle through the smallest member of scc:
// start, a successor inside the component, then the path back to start.
// Every member of a component reaches every other, so the walk always
// closes.
func reconstructCyclePath(scc []string, adj map[string][]string) []string {
	start := scc[0]
	if len(scc) == 1 {
		return []string{start, start}
	}

	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	sub := make(map[string][]string, len(scc))
	for _, n := range scc {
		for _, w := range adj[n] {
			if members[w] {
				sub[n] = append(sub[n], w)
			}
		}
	}

	for _, w := range sub[start] {
		if w == start {
			continue
		}
		if back := findPath(sub, w, start); back != nil {
			return append([]string{start}, back...)
		}
	}
	return []string{start, start}
}
