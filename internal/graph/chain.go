package graph

import (
	"cmp"
	"slices"
)

// Direction selects which way BuildChain walks edges.
type Direction int

const (
	// Responders walks from a record to the records that respond to it.
	Responders Direction = iota
	// Targets walks from a record to the records it responds to.
	Targets
)

// ChainOption configures BuildChain.
type ChainOption func(*chainConfig)

type chainConfig struct {
	dir Direction
}

// WithDirection sets the walk direction. The default is Responders.
func WithDirection(dir Direction) ChainOption {
	return func(c *chainConfig) {
		c.dir = dir
	}
}

// next returns the far end of e when walking in direction d.
func (d Direction) next(e Edge) string {
	if d == Targets {
		return e.ToID
	}
	return e.FromID
}

// from returns the near end of e when walking in direction d.
func (d Direction) from(e Edge) string {
	if d == Targets {
		return e.FromID
	}
	return e.ToID
}

// BuildChain collects the records reachable from root.
//
// By default the walk follows edges backwards, from the record responded to
// towards its responders, so the chain holds everything that responds
// directly or transitively to root. WithDirection(Targets) walks the other
// way: the records root responds to, and what those respond to.
//
// The walk is breadth-first. Records are ordered by distance from root, then
// by id; Relationships holds every edge between collected records in the
// order the walk met them. Depth is the longest edge path from root.
//
// records supplies node metadata; an id without metadata appears as a Node
// carrying only its ID. A root with nothing to walk to yields a chain of one
// record and depth 0.
func BuildChain(root string, records []Node, edges []Edge, opts ...ChainOption) Chain {
	var cfg chainConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	dir := cfg.dir

	meta := make(map[string]Node, len(records))
	for _, r := range records {
		meta[r.ID] = r
	}

	adjacent := make(map[string][]Edge)
	for _, e := range edges {
		adjacent[dir.from(e)] = append(adjacent[dir.from(e)], e)
	}
	for id := range adjacent {
		slices.SortFunc(adjacent[id], func(a, b Edge) int {
			return cmp.Or(cmp.Compare(dir.next(a), dir.next(b)), cmp.Compare(a.Kind, b.Kind))
		})
	}

	dist := map[string]int{root: 0}
	queue := []string{root}
	rels := []Edge{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range adjacent[cur] {
			rels = append(rels, e)
			if _, seen := dist[dir.next(e)]; !seen {
				dist[dir.next(e)] = dist[cur] + 1
				queue = append(queue, dir.next(e))
			}
		}
	}

	ids := make([]string, 0, len(dist))
	for id := range dist {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(dist[a], dist[b]), cmp.Compare(a, b))
	})

	nodes := make([]Node, len(ids))
	for i, id := range ids {
		if n, ok := meta[id]; ok {
			nodes[i] = n
		} else {
			nodes[i] = Node{ID: id}
		}
	}

	return Chain{
		Root:          root,
		Records:       nodes,
		Relationships: rels,
		Depth:         longestPath(root, adjacent, dir),
	}
}

// longestPath returns the longest edge path from root over adjacent,
// memoized per node. Edges back onto the current path are ignored, so a
// cyclic input still terminates.
func longestPath(root string, adjacent map[string][]Edge, dir Direction) int {
	memo := make(map[string]int)
	onPath := make(map[string]bool)

	var visit func(string) int
	visit = func(n string) int {
		if d, ok := memo[n]; ok {
			return d
		}
		onPath[n] = true
		best := 0
		for _, e := range adjacent[n] {
			if onPath[dir.next(e)] {
				continue
			}
			best = max(best, 1+visit(dir.next(e)))
		}
		onPath[n] = false
		memo[n] = best
		return best
	}
	return visit(root)
}
