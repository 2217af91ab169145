package graph

import (
	"slices"

	"github.com/roach88/agora/internal/errs"
)

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // finished
)

// DetectCircularReferences reports the first cycle in edges as a
// CIRCULAR_REFERENCE error naming the cycle path, or nil for an acyclic set.
//
// The walk is an iterative three-colour depth-first search, O(V+E), over
// nodes and successors in ascending id order so the reported cycle is
// deterministic. Sessions are not separated: edges never cross sessions, so
// a cycle in the union is a cycle in one session.
func DetectCircularReferences(edges []Edge) error {
	adj := adjacency(edges)

	nodes := make([]string, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)

	type frame struct {
		node string
		next int
	}

	colour := make(map[string]int, len(adj))
	for _, root := range nodes {
		if colour[root] != white {
			continue
		}

		stack := []frame{{node: root}}
		colour[root] = grey
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := adj[top.node]
			if top.next == len(succ) {
				colour[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			w := succ[top.next]
			top.next++

			switch colour[w] {
			case white:
				colour[w] = grey
				stack = append(stack, frame{node: w})
			case grey:
				// Back edge: the cycle is the stack from w to the top, then w.
				var path []string
				for i := range stack {
					if stack[i].node == w {
						for _, f := range stack[i:] {
							path = append(path, f.node)
						}
						break
					}
				}
				return errs.Circular("detect_cycles", append(path, w))
			}
		}
	}
	return nil
}

// adjacency maps every node to its sorted, de-duplicated successors. Nodes
// that only receive edges are present with no successors.
func adjacency(edges []Edge) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.FromID] = append(adj[e.FromID], e.ToID)
		if _, ok := adj[e.ToID]; !ok {
			adj[e.ToID] = nil
		}
	}
	for n, succ := range adj {
		slices.Sort(succ)
		adj[n] = slices.Compact(succ)
	}
	return adj
}
