package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
)

// Graph is an in-memory, acyclic relationship graph.
//
// Thread-safety: all methods are safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	edges []Edge
	index map[key]int
}

// New returns a graph seeded with edges. Duplicate seeds collapse to one
// edge; a seed set containing a cycle is rejected.
func New(edges ...Edge) (*Graph, error) {
	g := &Graph{index: make(map[key]int)}
	for _, e := range edges {
		if _, ok := g.index[e.key()]; ok {
			continue
		}
		g.index[e.key()] = len(g.edges)
		g.edges = append(g.edges, e)
	}
	if err := DetectCircularReferences(g.edges); err != nil {
		return nil, err
	}
	return g, nil
}

// AddEdge links from to to and returns the new edge.
//
// Checks, in order:
//  1. both ids, the session id and both agent ids are valid
//  2. both records are in the same session
//  3. the records differ and have different agents
//  4. the kind is known and the subtype is valid for it
//  5. the strength is computed against to's structure
//  6. an identical edge already present is returned as-is
//  7. no path leads from to back to from
//
// Any failure leaves the graph unchanged.
func (g *Graph) AddEdge(from, to Node, kind Kind, subtype string) (Edge, error) {
	const op = "add_edge"

	for _, id := range []string{from.ID, to.ID, from.SessionID, to.SessionID} {
		if err := ident.ValidateID(id); err != nil {
			return Edge{}, retag(err, op)
		}
	}
	if from.AgentID == "" || to.AgentID == "" {
		return Edge{}, errs.Validation(op, "agent id is empty")
	}

	if from.SessionID != to.SessionID {
		return Edge{}, errs.Validation(op, fmt.Sprintf("records %s and %s belong to different sessions", from.ID, to.ID))
	}
	if from.ID == to.ID {
		return Edge{}, errs.Validation(op, fmt.Sprintf("record %s cannot respond to itself", from.ID))
	}
	if from.AgentID == to.AgentID {
		return Edge{}, errs.Validation(op, fmt.Sprintf("agent %s cannot respond to its own record", from.AgentID))
	}

	strength, err := Strength(kind, subtype, to.Structure)
	if err != nil {
		return Edge{}, err
	}
	edge := Edge{
		FromID:    from.ID,
		ToID:      to.ID,
		Kind:      kind,
		Subtype:   subtype,
		SessionID: from.SessionID,
		Strength:  strength,
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if i, ok := g.index[edge.key()]; ok {
		existing := g.edges[i]
		if existing == edge {
			return existing, nil
		}
		return Edge{}, errs.Conflict(op, "", edge.FromID, fmt.Sprintf("%s already recorded with subtype %q", existing, existing.Subtype))
	}

	if path := findPath(g.sessionAdjacency(edge.SessionID), edge.ToID, edge.FromID); path != nil {
		return Edge{}, errs.Circular(op, append([]string{edge.FromID}, path...))
	}

	g.index[edge.key()] = len(g.edges)
	g.edges = append(g.edges, edge)
	return edge, nil
}

// Edges returns a copy of every edge in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

// SessionEdges returns a copy of the edges in sessionID, in insertion order.
func (g *Graph) SessionEdges(sessionID string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := []Edge{}
	for _, e := range g.edges {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// sessionAdjacency maps from → to over the edges of one session.
// Callers hold g.mu.
func (g *Graph) sessionAdjacency(sessionID string) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range g.edges {
		if e.SessionID == sessionID {
			adj[e.FromID] = append(adj[e.FromID], e.ToID)
		}
	}
	return adj
}

// findPath returns a path start → ... → goal following adj, or nil.
// The search is an iterative depth-first walk visiting each node once.
func findPath(adj map[string][]string, start, goal string) []string {
	if start == goal {
		return []string{start}
	}

	parent := map[string]string{start: ""}
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[n] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = n
			if next == goal {
				var path []string
				for cur := goal; cur != ""; cur = parent[cur] {
					path = append(path, cur)
				}
				slices.Reverse(path)
				return path
			}
			stack = append(stack, next)
		}
	}
	return nil
}

// retag replaces the op of an *errs.Error.
func retag(err error, op string) error {
	e, ok := err.(*errs.Error)
	if !ok {
		return err
	}
	c := *e
	c.Op = op
	return &c
}
